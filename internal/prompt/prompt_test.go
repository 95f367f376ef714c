package prompt

import (
	"strings"
	"testing"

	"queryscope/internal/sanitize"
	"queryscope/internal/storage"
)

var project = storage.Project{
	BrandName:   "Acme",
	Domain:      "acme.com",
	Industry:    "developer tools",
	Description: "CI for robots",
	Competitors: []string{"Globex", "Initech"},
}

func TestGeneration(t *testing.T) {
	p := Generation(project, 50)

	for _, want := range []string{
		"Generate exactly 50 distinct queries",
		"Brand: Acme",
		"Website: acme.com",
		"Industry: developer tools",
		"Competitors: Globex, Initech",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("generation prompt missing %q", want)
		}
	}

	// The closed enum sets are spelled out so the model has no room to invent.
	for _, c := range sanitize.QueryCategories {
		if !strings.Contains(p, `"`+c+`"`) {
			t.Errorf("generation prompt missing category %q", c)
		}
	}
	for _, f := range sanitize.QueryFormats {
		if !strings.Contains(p, `"`+f+`"`) {
			t.Errorf("generation prompt missing format %q", f)
		}
	}
}

func TestGeneration_OmitsEmptyContextLines(t *testing.T) {
	p := Generation(storage.Project{BrandName: "Acme"}, 10)
	for _, unwanted := range []string{"Website:", "Industry:", "Description:", "Competitors:"} {
		if strings.Contains(p, unwanted) {
			t.Errorf("prompt contains %q for a project without that field", unwanted)
		}
	}
}

func TestAnalysis(t *testing.T) {
	p := Analysis(project, "best ci tools for robots")

	for _, want := range []string{
		`Query: "best ci tools for robots"`,
		"Brand: Acme",
		"brand_mentions",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("analysis prompt missing %q", want)
		}
	}
	for _, qt := range sanitize.QueryTypes {
		if !strings.Contains(p, `"`+qt+`"`) {
			t.Errorf("analysis prompt missing type %q", qt)
		}
	}
}

func TestTopUp(t *testing.T) {
	existing := []string{"first existing query", "second existing query"}
	p := TopUp(project, 12, existing)

	if !strings.Contains(p, "Generate exactly 12 distinct queries") {
		t.Error("top-up prompt missing count")
	}
	if !strings.Contains(p, "must be distinct") {
		t.Error("top-up prompt missing distinctness instruction")
	}
	for _, q := range existing {
		if !strings.Contains(p, "- "+q) {
			t.Errorf("top-up prompt missing existing query %q", q)
		}
	}
}

func TestSamplingConfigs(t *testing.T) {
	if AnalysisSampling.Temperature >= GenerationSampling.Temperature {
		t.Errorf("analysis temperature %v not cooler than generation %v",
			AnalysisSampling.Temperature, GenerationSampling.Temperature)
	}
	if GenerationSampling.MaxOutputTokens < 8192 {
		t.Errorf("generation MaxOutputTokens = %d, too small for large batches",
			GenerationSampling.MaxOutputTokens)
	}
}
