package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "c_3", ArticleKey("c", 3).String())
	assert.Equal(t, "qa_0_12", ItemKey("qa", 0, 12).String())
	assert.False(t, ArticleKey("c", 3).HasItem())
	assert.True(t, ItemKey("p", 3, 0).HasItem())
}

func TestParseKeyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, k := range []Key{ArticleKey("q", 0), ArticleKey("c", 41), ItemKey("arg", 7, 0), ItemKey("p", 0, 9)} {
		parsed, err := ParseKey(k.String())
		require.NoError(t, err, k.String())
		assert.Equal(t, k, parsed)
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "c", "c_", "_1", "c_x", "c_1_y", "c_-1", "c_01", "c_1_2_3"} {
		_, err := ParseKey(s)
		assert.Error(t, err, s)
	}
}

func TestKeyArticleIndexIsSharedAcrossPhases(t *testing.T) {
	t.Parallel()

	for i := 0; i < 5; i++ {
		phase1, err := ParseKey(ArticleKey("q", i).String())
		require.NoError(t, err)
		for j := 0; j < 3; j++ {
			phase2, err := ParseKey(ItemKey("qa", i, j).String())
			require.NoError(t, err)
			phase3, err := ParseKey(ItemKey("arg", i, j).String())
			require.NoError(t, err)

			assert.Equal(t, phase1.Article, phase2.Article)
			assert.Equal(t, phase2.Article, phase3.Article)
			assert.Equal(t, phase2.Item, phase3.Item)
		}
	}
}

func TestKeyValidate(t *testing.T) {
	t.Parallel()

	assert.Error(t, ArticleKey("", 0).Validate())
	assert.Error(t, ArticleKey("a_b", 0).Validate())
	assert.Error(t, ArticleKey("c", -2).Validate())
	assert.Error(t, ItemKey("c", 0, -5).Validate())
	assert.NoError(t, ItemKey("c", 0, 0).Validate())
}
