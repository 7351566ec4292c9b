// Command replay streams recorded observation frames (JSONL, one frame per
// line) to a running junction.report server at a fixed frame rate. Useful
// for demoing the analytics pipeline without a live tracker.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/banshee-data/junction.report/internal/traffic"
)

type replayFrame struct {
	Timestamp    *time.Time            `json:"timestamp,omitempty"`
	Observations []traffic.Observation `json:"observations"`
}

func postFrame(client *http.Client, url string, f replayFrame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func main() {
	var inputPath string
	var serverURL string
	var fps float64
	var loop bool

	flag.StringVar(&inputPath, "input", "", "path to JSONL frames file")
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the junction server")
	flag.Float64Var(&fps, "fps", 30, "frames per second to replay at")
	flag.BoolVar(&loop, "loop", false, "restart from the beginning when the file ends")
	flag.Parse()

	if inputPath == "" {
		log.Fatalf("input must be provided")
	}
	if fps <= 0 {
		log.Fatalf("fps must be positive")
	}

	url := serverURL + "/api/frame"
	client := &http.Client{Timeout: 5 * time.Second}
	interval := time.Duration(float64(time.Second) / fps)

	for {
		file, err := os.Open(inputPath)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

		sent := 0
		dropped := 0
		ticker := time.NewTicker(interval)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var f replayFrame
			if err := json.Unmarshal(line, &f); err != nil {
				log.Fatalf("bad frame at line %d: %v", sent+dropped+1, err)
			}

			<-ticker.C
			if err := postFrame(client, url, f); err != nil {
				// keep pace even when the server sheds load
				log.Printf("frame dropped: %v", err)
				dropped++
				continue
			}
			sent++
		}
		ticker.Stop()
		file.Close()

		if err := scanner.Err(); err != nil {
			log.Fatalf("read input: %v", err)
		}

		fmt.Printf("replayed %d frames (%d dropped)\n", sent, dropped)
		if !loop {
			return
		}
	}
}
