package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/contract"
	"github.com/contentops/social-listening-bot/internal/llm"
	"github.com/contentops/social-listening-bot/internal/models"
	"github.com/contentops/social-listening-bot/internal/triage"
	"github.com/joho/godotenv"
)

// Accuracy floors per metric. A release that regresses below any floor fails
// the run with a non-zero exit code.
var thresholds = map[string]float64{
	"sentiment_exact":    0.85,
	"priority_exact":     0.80,
	"compliance_exact":   0.95,
	"routes_exact":       0.85,
	"entity_jaccard":     0.65,
	"content_population": 0.90,
}

// labeledCase is one line of the JSONL evaluation dataset: a mention plus the
// expected classification.
type labeledCase struct {
	Mention  models.Mention `json:"mention"`
	Expected struct {
		Sentiment      string   `json:"sentiment"`
		Priority       int      `json:"priority"`
		ComplianceMode bool     `json:"compliance_mode"`
		Routes         struct {
			Lead       bool `json:"lead"`
			Reputation bool `json:"reputation"`
			Content    bool `json:"content"`
		} `json:"routes"`
		Entities []string `json:"entities"`
	} `json:"expected"`
}

type tally struct {
	hits  float64
	total float64
}

func (t *tally) add(score float64) {
	t.hits += score
	t.total++
}

func (t *tally) rate() float64 {
	if t.total == 0 {
		return 0
	}
	return t.hits / t.total
}

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded .env file")
	}

	datasetPath := "eval/labeled_mentions.jsonl"
	if len(os.Args) > 1 {
		datasetPath = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cases, err := loadDataset(datasetPath)
	if err != nil {
		fmt.Printf("Failed to load dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("CLASSIFIER EVALUATION")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Dataset:  %s (%d cases)\n", datasetPath, len(cases))
	fmt.Printf("Models:   triage=%s high=%s\n", cfg.ModelTriage, cfg.ModelHigh)
	fmt.Printf("Started:  %s\n", time.Now().Format("2006-01-02 15:04:05 UTC"))

	classifier := triage.NewClassifier(llm.NewClient(cfg.OpenAIAPIKey), cfg.ModelTriage, cfg.ModelHigh)

	metrics := map[string]*tally{
		"sentiment_exact":    {},
		"priority_exact":     {},
		"compliance_exact":   {},
		"routes_exact":       {},
		"entity_jaccard":     {},
		"content_population": {},
	}
	failures := 0

	ctx := context.Background()
	for i, c := range cases {
		result, pass, err := classifier.Classify(ctx, c.Mention)
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED %s: %v\n", i+1, len(cases), c.Mention.URL, err)
			failures++
			continue
		}

		metrics["sentiment_exact"].add(exact(result.Sentiment == c.Expected.Sentiment))
		metrics["priority_exact"].add(exact(result.Priority == c.Expected.Priority))
		metrics["compliance_exact"].add(exact(result.ComplianceMode == c.Expected.ComplianceMode))
		metrics["routes_exact"].add(exact(result.Routes.Lead == c.Expected.Routes.Lead &&
			result.Routes.Reputation == c.Expected.Routes.Reputation &&
			result.Routes.Content == c.Expected.Routes.Content))
		metrics["entity_jaccard"].add(jaccard(result.Entities, c.Expected.Entities))
		if result.Routes.Content {
			metrics["content_population"].add(exact(contentPopulated(result)))
		}

		fmt.Printf("  [%d/%d] %s | %s P%d | pass=%s\n",
			i+1, len(cases), c.Mention.URL, result.Sentiment, result.Priority, pass)
	}

	fmt.Println("\n" + strings.Repeat("-", 70))
	fmt.Printf("%-22s %8s %8s %8s\n", "METRIC", "SCORE", "FLOOR", "RESULT")
	fmt.Println(strings.Repeat("-", 70))

	passed := failures == 0
	for _, name := range []string{"sentiment_exact", "priority_exact", "compliance_exact", "routes_exact", "entity_jaccard", "content_population"} {
		t := metrics[name]
		if t.total == 0 {
			fmt.Printf("%-22s %8s %8.2f %8s\n", name, "n/a", thresholds[name], "SKIP")
			continue
		}
		verdict := "PASS"
		if t.rate() < thresholds[name] {
			verdict = "FAIL"
			passed = false
		}
		fmt.Printf("%-22s %8.3f %8.2f %8s\n", name, t.rate(), thresholds[name], verdict)
	}

	if failures > 0 {
		fmt.Printf("\n%d cases failed to classify\n", failures)
	}

	fmt.Println(strings.Repeat("=", 70))
	if !passed {
		fmt.Println("EVALUATION FAILED")
		os.Exit(1)
	}
	fmt.Println("EVALUATION PASSED")
}

func loadDataset(path string) ([]labeledCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cases []labeledCase
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c labeledCase
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}
	return cases, nil
}

func exact(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// jaccard computes case-insensitive set overlap between predicted and
// expected entities. Two empty sets score 1.
func jaccard(predicted, expected []string) float64 {
	a := toSet(predicted)
	b := toSet(expected)
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.TrimSpace(item))] = true
	}
	return set
}

// contentPopulated reports whether a content-routed result carries a usable
// content payload.
func contentPopulated(result *contract.TriageResult) bool {
	return strings.TrimSpace(result.Content.Title) != "" &&
		strings.TrimSpace(result.Content.Angle) != "" &&
		len(result.Content.OutlineBullets) > 0
}
