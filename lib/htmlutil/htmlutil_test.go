package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, doc string) *goquery.Document {
	t.Helper()
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestRenderText(t *testing.T) {
	doc := parse(t, `<html><body>
		<table border="0">
			<tr><td>Your sequence is:<br><b>PROBABLE
			ALLERGEN</b></td></tr>
			<tr><td>Score</td><td>0.92</td></tr>
			<script>var ignored = 1;</script>
		</table>
	</body></html>`)

	text := RenderText(doc.Find("table"))
	require.Equal(t, "Your sequence is:\nPROBABLE ALLERGEN\nScore 0.92", text)
}

func TestInnerSplit(t *testing.T) {
	cases := []struct {
		text     string
		pre      string
		end      string
		expected []string
	}{
		{
			text: "seq1 is predicted to be Probable ANTIGEN with probability 87.5%\n" +
				"seq2 is predicted to be Probable NON-ANTIGEN with probability 40%",
			pre:      "with probability",
			end:      "\n",
			expected: []string{"87.5%", "40%"},
		},
		{
			text:     "Protective Antigen = 0.5467 ( Probable ANTIGEN ).",
			pre:      "(",
			end:      ")",
			expected: []string{"Probable ANTIGEN"},
		},
		{
			text:     "nothing to see",
			pre:      "Your sequence is:\n",
			end:      "\n",
			expected: nil,
		},
	}

	for _, test := range cases {
		require.Equal(t, test.expected, InnerSplit(test.text, test.pre, test.end))
	}
}
