package simpleai_test

import (
	"context"
	"fmt"
	"log"

	"github.com/simpleai-go/simpleai"
	"github.com/simpleai-go/simpleai/schema"
)

func Example() {
	resp, err := simpleai.Run(context.Background(), "What is the capital of France?")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp.Text)
}

func Example_search() {
	resp, err := simpleai.Run(context.Background(),
		"What changed in the latest Go release?",
		simpleai.WithModel("grok"),
		simpleai.WithReturnCitations(true),
	)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp.Text)
	for _, c := range resp.Citations {
		fmt.Println(" -", c.URL)
	}
}

func Example_structuredOutput() {
	format := &schema.Format{
		Name: "city_info",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city":       map[string]any{"type": "string"},
				"population": map[string]any{"type": "integer"},
			},
			"required": []any{"city", "population"},
		},
	}

	resp, err := simpleai.Run(context.Background(),
		"Name the largest city in Japan with its population.",
		simpleai.WithModel("gpt-5.2"),
		simpleai.WithOutputFormat(format),
	)
	if err != nil {
		log.Fatal(err)
	}

	var out struct {
		City       string `json:"city"`
		Population int64  `json:"population"`
	}
	if err := resp.Decode(&out); err != nil {
		log.Fatal(err)
	}
	fmt.Println(out.City, out.Population)
}

func ExampleClient_Run_files() {
	client := simpleai.New()
	resp, err := client.Run(context.Background(),
		"Summarize the attached report.",
		simpleai.WithModel("gemini"),
		simpleai.WithFile("report.pdf"),
	)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp.Text)
}
