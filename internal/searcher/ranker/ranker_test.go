package ranker

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
)

func governanceCorpus() *index.Artifact {
	return index.Build([]index.Document{
		{Title: "Corporate Governance and Finance", PubURL: "https://example.org/1"},
		{Title: "Microfinance Governance", PubURL: "https://example.org/2"},
	}, 1)
}

func TestSearchTwoDocuments(t *testing.T) {
	results := RankQuery("governance finance", governanceCorpus())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	gov := math.Log(3/2.5) + 1
	fin := math.Log(3/1.5) + 1
	want0 := gov*TitleBoost + fin
	want0 *= TitleBoost
	want1 := gov * TitleBoost

	if results[0].Index != 0 || results[1].Index != 1 {
		t.Fatalf("order = %d,%d, want 0,1", results[0].Index, results[1].Index)
	}
	if math.Abs(results[0].Score-want0) > 1e-9 {
		t.Errorf("score[0] = %v, want %v", results[0].Score, want0)
	}
	if math.Abs(results[1].Score-want1) > 1e-9 {
		t.Errorf("score[1] = %v, want %v", results[1].Score, want1)
	}
}

func TestSearchScenarioCorpus(t *testing.T) {
	a := index.Build([]index.Document{
		{Title: "Corporate Governance", Abstract: "finance", PubURL: "u1"},
		{Title: "Microfinance Trends", Abstract: "governance", PubURL: "u2"},
	}, 1)
	results := RankQuery("governance finance", a)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Index != 0 || results[1].Index != 1 {
		t.Fatalf("order = %d,%d, want 0,1", results[0].Index, results[1].Index)
	}

	gov := math.Log(3/2.5) + 1
	fin := math.Log(3/1.5) + 1
	want := []float64{gov*TitleBoost + fin, gov}
	for i, w := range want {
		if math.Abs(results[i].Score-w) > 1e-9 {
			t.Errorf("score[%d] = %v, want %v", i, results[i].Score, w)
		}
	}
}

func TestTitleBoostCompounds(t *testing.T) {
	a := index.Build([]index.Document{
		{Title: "Alpha Beta"},
		{Title: "Gamma", Abstract: "alpha beta"},
	}, 1)
	terms := []string{"alpha", "beta"}
	inTitle := Score(a, 0, terms)
	inBody := Score(a, 1, terms)

	idfA := a.IDF("alpha")
	idfB := a.IDF("beta")
	want := (idfA*TitleBoost + idfB) * TitleBoost
	if math.Abs(inTitle-want) > 1e-12 {
		t.Errorf("title score = %v, want %v", inTitle, want)
	}
	if math.Abs(inBody-(idfA+idfB)) > 1e-12 {
		t.Errorf("body score = %v, want %v", inBody, idfA+idfB)
	}
	if inTitle <= inBody {
		t.Errorf("title match %v should outrank body match %v", inTitle, inBody)
	}
}

func TestTitleBoostTieKeepsCorpusOrder(t *testing.T) {
	a := index.Build([]index.Document{
		{Title: "Finance", Abstract: "finance"},
		{Title: "Finance finance"},
	}, 1)
	results := RankQuery("finance", a)
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Score != results[1].Score {
		t.Fatalf("scores differ: %v vs %v", results[0].Score, results[1].Score)
	}
	if results[0].Index != 0 {
		t.Errorf("tie broken toward index %d, want 0", results[0].Index)
	}
}

func TestTitleBoostSingleTerm(t *testing.T) {
	a := index.Build([]index.Document{
		{Title: "governance finance", Abstract: "finance"},
		{Title: "finance", Abstract: "finance"},
	}, 1)
	results := RankQuery("finance", a)
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	want := (1 + math.Log(2)) * a.IDF("finance") * TitleBoost
	if results[0].Index != 0 {
		t.Errorf("doc1 ranked at index %d", results[0].Index)
	}
	if math.Abs(results[0].Score-want) > 1e-12 {
		t.Errorf("boosted score = %v, want %v", results[0].Score, want)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("doc1 %v < doc2 %v", results[0].Score, results[1].Score)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "!!!"} {
		if got := RankQuery(q, governanceCorpus()); len(got) != 0 {
			t.Errorf("Search(%q) = %d results, want 0", q, len(got))
		}
	}
}

func TestSearchUnknownTerm(t *testing.T) {
	if got := RankQuery("blockchain", governanceCorpus()); len(got) != 0 {
		t.Errorf("unknown term matched %d docs", len(got))
	}
}

func TestSearchDuplicateQueryTerms(t *testing.T) {
	a := governanceCorpus()
	once := RankQuery("governance", a)
	twice := RankQuery("governance Governance governance", a)
	if len(once) != len(twice) {
		t.Fatalf("len %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Score != twice[i].Score {
			t.Errorf("result %d: %v vs %v", i, once[i].Score, twice[i].Score)
		}
	}
}

func TestSearchHyphenatedTerm(t *testing.T) {
	a := index.Build([]index.Document{
		{Title: "Micro-finance in practice"},
		{Title: "Finance in practice"},
	}, 1)
	results := RankQuery("micro-finance", a)
	if len(results) != 1 || results[0].Index != 0 {
		t.Errorf("results = %+v", results)
	}
}

func TestScoresPositiveAndSorted(t *testing.T) {
	docs := make([]index.Document, 0, 30)
	for i := 0; i < 30; i++ {
		docs = append(docs, index.Document{
			Title:    fmt.Sprintf("Paper %d on risk", i),
			Abstract: fmt.Sprintf("risk %s", repeat("finance ", i%5)),
		})
	}
	results := RankQuery("risk finance", index.Build(docs, 1))
	for i, r := range results {
		if r.Score <= 0 {
			t.Errorf("result %d has score %v", i, r.Score)
		}
		if i > 0 && results[i-1].Score < r.Score {
			t.Errorf("results not sorted at %d", i)
		}
		if i > 0 && results[i-1].Score == r.Score && results[i-1].Index > r.Index {
			t.Errorf("tie at %d not in corpus order", i)
		}
	}
}

func TestDistinctTerms(t *testing.T) {
	got := DistinctTerms([]string{"b", "a", "b", "c", "a"})
	if !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Errorf("DistinctTerms = %v", got)
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func BenchmarkSearch(b *testing.B) {
	docs := make([]index.Document, 0, 2000)
	for i := 0; i < 2000; i++ {
		docs = append(docs, index.Document{
			Title:    fmt.Sprintf("Corporate governance study %d", i),
			Abstract: "Board structure, financial inclusion and microfinance outcomes across emerging markets.",
			CUAuthor: "Piotr Lis",
		})
	}
	a := index.Build(docs, 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = RankQuery("corporate governance microfinance", a)
	}
}

func TestSearchReturnsDocumentsInRankOrder(t *testing.T) {
	docs := Search("governance finance", governanceCorpus())
	if len(docs) != 2 {
		t.Fatalf("got %d docs", len(docs))
	}
	if docs[0].PubURL != "https://example.org/1" || docs[1].PubURL != "https://example.org/2" {
		t.Errorf("order = %q, %q", docs[0].PubURL, docs[1].PubURL)
	}
	if got := Search("", governanceCorpus()); len(got) != 0 {
		t.Errorf("empty query returned %d docs", len(got))
	}
}
