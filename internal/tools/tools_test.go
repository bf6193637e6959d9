package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"epieval/internal/browser"
	"epieval/lib/telemetry"

	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed testdata/vaxijen3.html
var vaxijen3Html string

//go:embed testdata/vaxijen2.html
var vaxijen2Html string

//go:embed testdata/allertop2.html
var allertop2Html string

//go:embed testdata/allergenfp1.html
var allergenfp1Html string

//go:embed testdata/form.html
var formHtml string

func lookup(t *testing.T, name Name) Adapter {
	t.Helper()
	adapter, err := DefaultRegistry().Lookup(string(name))
	require.NoError(t, err)
	return adapter
}

func TestLookup(t *testing.T) {
	registry := DefaultRegistry()
	require.Equal(t, []Name{AllerTop2, AllergenFP1, Vaxijen2, Vaxijen3}, registry.Names())

	adapter, err := registry.Lookup(" vaxijen3 ")
	require.NoError(t, err)
	require.Equal(t, Vaxijen3, adapter.Descriptor().Name)

	_, err = registry.Lookup("Vaxijen4")
	require.ErrorIs(t, err, ErrUnsupportedTool)
	require.ErrorContains(t, err, "did you mean")

	_, err = registry.Lookup("NetMHCpan")
	require.ErrorIs(t, err, ErrUnsupportedTool)
	require.NotContains(t, err.Error(), "did you mean")
}

func TestParams(t *testing.T) {
	params, err := lookup(t, Vaxijen2).Params(nil)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"Target": "Bacteria"}, params.Fields())

	params, err = lookup(t, Vaxijen2).Params(map[string]string{"target": "tumor"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"Target": "Tumour"}, params.Fields())

	_, err = lookup(t, Vaxijen2).Params(map[string]string{"Target": "plants"})
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = lookup(t, Vaxijen2).Params(map[string]string{"threshold": "0.5"})
	require.ErrorIs(t, err, ErrInvalidParams)

	params, err = lookup(t, AllerTop2).Params(map[string]string{})
	require.NoError(t, err)
	require.Empty(t, params.Fields())

	_, err = lookup(t, AllergenFP1).Params(map[string]string{"x": "1"})
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestScores(t *testing.T) {
	require.InDelta(t, 0.875, AntigenScore("Probable ANTIGEN", 87.5), 1e-9)
	require.InDelta(t, -0.62, AntigenScore("Probable NON-ANTIGEN", 62), 1e-9)
	require.InDelta(t, 0.3, AntigenScore("positive", 30), 1e-9)
	require.InDelta(t, -0.3, AntigenScore("negative", 30), 1e-9)

	require.Equal(t, 0.0, AllergenScore("PROBABLE NON-ALLERGEN"))
	require.Equal(t, 0.0, AllergenScore("non-allergen"))
	require.Equal(t, 1.0, AllergenScore("PROBABLE ALLERGEN"))
	require.Equal(t, 1.0, AllergenScore("unknown"))
}

func TestExtractDocument(t *testing.T) {
	cases := []struct {
		tool        Name
		html        string
		scores      []float64
		probability []float64
	}{
		{
			tool:        Vaxijen3,
			html:        vaxijen3Html,
			scores:      []float64{0.875, -0.62, 0.512},
			probability: []float64{87.5, 62, 51.2},
		},
		{
			tool:        Vaxijen2,
			html:        vaxijen2Html,
			scores:      []float64{0.5467, -0.321},
			probability: []float64{54.67, 32.1},
		},
		{tool: AllerTop2, html: allertop2Html, scores: []float64{0}},
		{tool: AllergenFP1, html: allergenfp1Html, scores: []float64{1}},
	}

	for _, c := range cases {
		t.Run(string(c.tool), func(t *testing.T) {
			columns, err := ExtractDocument(lookup(t, c.tool), c.html)
			require.NoError(t, err)
			require.InDeltaSlice(t, c.scores, columns[ColumnScore], 1e-9)
			if c.probability != nil {
				require.InDeltaSlice(t, c.probability, columns[ColumnProbability], 1e-9)
			}
		})
	}
}

func TestExtractNotReady(t *testing.T) {
	_, err := ExtractDocument(lookup(t, Vaxijen3), formHtml)
	require.ErrorIs(t, err, errNotReady)

	_, err = ExtractDocument(lookup(t, AllerTop2), formHtml)
	require.ErrorIs(t, err, errNotReady)
}

func TestExtractMismatch(t *testing.T) {
	_, err := extractVaxijen3("seq1 is predicted to be Probable ANTIGEN with\nseq2 is predicted to be Probable ANTIGEN with probability 3%")
	require.ErrorIs(t, err, ErrParse)

	_, err = extractVaxijen3("a is predicted to be Probable ANTIGEN with probability lots\n")
	require.ErrorIs(t, err, ErrParse)
}

// pageSession serves a fixed sequence of documents, repeating the last one.
type pageSession struct {
	mu    sync.Mutex
	pages []string
	calls int
	err   error
}

func (s *pageSession) Open(context.Context, string) error { return nil }
func (s *pageSession) Fill(context.Context, map[string]string) error { return nil }
func (s *pageSession) Submit(context.Context, string) error { return nil }
func (s *pageSession) Close() error { return nil }

func (s *pageSession) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	idx := min(s.calls-1, len(s.pages)-1)
	return s.pages[idx], nil
}

var _ browser.Session = (*pageSession)(nil)

func TestWaitForResults(t *testing.T) {
	session := &pageSession{pages: []string{formHtml, formHtml, allertop2Html}}
	columns, err := WaitForResults(
		context.Background(), session, lookup(t, AllerTop2),
		Poll{Interval: time.Millisecond, Timeout: time.Second},
	)
	require.NoError(t, err)
	require.Equal(t, []float64{0}, columns[ColumnScore])
	require.Equal(t, 3, session.calls)
}

func TestWaitForResultsTimeout(t *testing.T) {
	session := &pageSession{pages: []string{formHtml}}
	_, err := WaitForResults(
		context.Background(), session, lookup(t, AllerTop2),
		Poll{Interval: time.Millisecond, Timeout: 20 * time.Millisecond},
	)
	require.ErrorIs(t, err, ErrResultTimeout)

	session = &pageSession{err: errors.New("target closed")}
	_, err = WaitForResults(
		context.Background(), session, lookup(t, AllerTop2),
		Poll{Interval: time.Millisecond, Timeout: 20 * time.Millisecond},
	)
	require.ErrorIs(t, err, ErrResultTimeout)
}

// stuckSession never finishes reading the document, like a tab hung mid navigation.
type stuckSession struct {
	pageSession
}

func (s *stuckSession) HTML(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestWaitForResultsStuckPage(t *testing.T) {
	adapter := lookup(t, AllerTop2)
	done := make(chan error, 1)
	go func() {
		_, err := WaitForResults(
			context.Background(), &stuckSession{}, adapter,
			Poll{Interval: time.Millisecond, Timeout: 50 * time.Millisecond},
		)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrResultTimeout)
		require.NotErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("result polling did not honor its timeout")
	}
}

func TestWaitForResultsParseError(t *testing.T) {
	broken := `<table class="boilerplate"><tr><td>x is predicted to be Probable ANTIGEN with probability many</td></tr></table>`
	session := &pageSession{pages: []string{broken}}
	_, err := WaitForResults(
		context.Background(), session, lookup(t, Vaxijen3),
		Poll{Interval: time.Millisecond, Timeout: time.Second},
	)
	require.ErrorIs(t, err, ErrParse)
	require.NotErrorIs(t, err, ErrResultTimeout)
	require.Equal(t, 1, session.calls)
}

func TestWaitForResultsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &pageSession{pages: []string{formHtml}}
	_, err := WaitForResults(ctx, session, lookup(t, AllerTop2), Poll{Interval: time.Millisecond})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPing(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(formHtml))
	}))
	defer ok.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	client := NewClient(&telemetry.Recorder{}, nil)

	desc := lookup(t, AllerTop2).Descriptor()
	desc.URL = ok.URL
	require.NoError(t, Ping(context.Background(), client, desc))

	desc.URL = down.URL
	err := Ping(context.Background(), client, desc)
	require.ErrorIs(t, err, browser.ErrNavigation)
	require.ErrorContains(t, err, "503")
}
