package post

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hashtagPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

func TestParseHashtags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"hash prefixed", "#Travel #lisbon", []string{"travel", "lisbon"}},
		{"commas and spaces", "sun, sea,sand", []string{"sun", "sea", "sand"}},
		{"joined hashes", "#a#b#c", []string{"a", "b", "c"}},
		{"strips punctuation", "#hello-world! café", []string{"helloworld", "caf"}},
		{"dedup keeps first", "Dog dog DOG cat", []string{"dog", "cat"}},
		{"only symbols", "#!! ### ,,,", []string{}},
		{"underscores", "#golden_hour", []string{"golden_hour"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHashtags(tt.in))
		})
	}
}

func TestParseHashtagsTruncatesLongTokens(t *testing.T) {
	long := strings.Repeat("ab", 40)
	got := ParseHashtags("#" + long + " #" + long + "zz")
	require.Len(t, got, 1, "truncation collapses both tokens to the same tag")
	assert.Len(t, got[0], MaxHashtagLength)
}

func TestParseHashtagsCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "#tag%d ", i)
	}
	got := ParseHashtags(b.String())
	require.Len(t, got, MaxHashtags)
	assert.Equal(t, "tag0", got[0])
	assert.Equal(t, "tag19", got[MaxHashtags-1])
}

func TestParseHashtagsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcXYZ019_#, \t-!éü漢")
	for i := 0; i < 500; i++ {
		n := rng.Intn(200)
		runes := make([]rune, n)
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		in := string(runes)

		once := ParseHashtags(in)
		twice := ParseHashtags(strings.Join(once, " "))
		require.Equal(t, once, twice, "input %q", in)

		assert.LessOrEqual(t, len(once), MaxHashtags)
		seen := map[string]bool{}
		for _, tag := range once {
			assert.Regexp(t, hashtagPattern, tag)
			assert.LessOrEqual(t, len(tag), MaxHashtagLength)
			assert.False(t, seen[tag], "duplicate %q", tag)
			seen[tag] = true
		}
	}
}

func TestFormatHashtags(t *testing.T) {
	assert.Equal(t, "#a #b_c", FormatHashtags([]string{"a", "b_c"}))
	assert.Equal(t, "", FormatHashtags(nil))
}
