// Command forecast-client calls a running forecast server: it triggers a
// generation, saves the (marked) image and prints metadata and next rain.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 2 * time.Minute}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the forecast server")
	zipCode := flag.Int("zip-code", 8001, "Zip Code to fetch")
	output := flag.String("o", "forecast.png", "File name of the downloaded image")
	generate := flag.Bool("generate", true, "Generate the forecast before downloading it")
	markTime := flag.Bool("mark-time", true, "Mark the current time on the image")
	params := flag.String("params", "", "Additional generate parameters, eg. days-to-show=3&use-dark-mode=1")
	flag.Parse()

	fmt.Println("MeteoSwiss Forecast Client")
	fmt.Println("==========================")

	if *generate {
		fmt.Printf("\nGenerating forecast for %d...\n", *zipCode)
		query := fmt.Sprintf("zip-code=%d", *zipCode)
		if *params != "" {
			query += "&" + *params
		}
		if err := streamLines(*baseURL + "/generate-forecast?" + query); err != nil {
			fmt.Printf("Error generating forecast: %v\n", err)
			os.Exit(1)
		}
	}

	imageURL := fmt.Sprintf("%s/get-forecast?zip-code=%d&mark-time=%t", *baseURL, *zipCode, *markTime)
	image, err := fetch(imageURL)
	if err != nil {
		fmt.Printf("Error fetching image: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, image, 0o644); err != nil {
		fmt.Printf("Error writing image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nImage saved as %s (%d bytes)\n", *output, len(image))

	for _, endpoint := range []string{"get-metadata", "get-next-rain"} {
		body, err := fetch(fmt.Sprintf("%s/%s?zip-code=%d", *baseURL, endpoint, *zipCode))
		if err != nil {
			fmt.Printf("Error fetching %s: %v\n", endpoint, err)
			continue
		}
		var data map[string]interface{}
		json.Unmarshal(body, &data)
		prettyJSON, _ := json.MarshalIndent(data, "", "  ")
		fmt.Printf("\n%s:\n%s\n", endpoint, string(prettyJSON))
	}
}

// fetch returns the body of a successful GET; error responses carry a JSON error
func fetch(u string) ([]byte, error) {
	resp, err := client.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

// streamLines prints the progress lines of a generation as they arrive
func streamLines(u string) error {
	resp, err := client.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	failed := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "<br>")
		if strings.HasPrefix(line, "An error occurred") {
			failed = true
		}
		fmt.Println("  " + line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("generation failed")
	}
	return nil
}
