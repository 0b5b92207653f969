package batch

import (
	"fmt"
	"strconv"
	"strings"
)

const noItem = -1

// Key correlates one request of a phase with the article, and optionally the
// prior-phase item, it was built for. Its string form is echoed back by the
// remote service as the request's custom id.
type Key struct {
	Tag     string
	Article int
	Item    int
}

// ArticleKey addresses the whole article i within the phase tagged tag.
func ArticleKey(tag string, article int) Key {
	return Key{Tag: tag, Article: article, Item: noItem}
}

// ItemKey addresses item j of article i within the phase tagged tag.
func ItemKey(tag string, article, item int) Key {
	return Key{Tag: tag, Article: article, Item: item}
}

// HasItem reports whether the key carries an item index.
func (k Key) HasItem() bool {
	return k.Item != noItem
}

// String renders "<tag>_<article>" or "<tag>_<article>_<item>".
func (k Key) String() string {
	if !k.HasItem() {
		return k.Tag + "_" + strconv.Itoa(k.Article)
	}
	return k.Tag + "_" + strconv.Itoa(k.Article) + "_" + strconv.Itoa(k.Item)
}

// Validate checks that the key can survive a round trip through its string form.
func (k Key) Validate() error {
	if k.Tag == "" || strings.Contains(k.Tag, "_") {
		return fmt.Errorf("invalid key tag %q", k.Tag)
	}
	if k.Article < 0 {
		return fmt.Errorf("negative article index in key %s", k)
	}
	if k.Item < noItem {
		return fmt.Errorf("negative item index in key %s", k)
	}
	return nil
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 && len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed correlation key %q", s)
	}

	article, err := parseIndex(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("correlation key %q: %w", s, err)
	}
	key := ArticleKey(parts[0], article)

	if len(parts) == 3 {
		item, err := parseIndex(parts[2])
		if err != nil {
			return Key{}, fmt.Errorf("correlation key %q: %w", s, err)
		}
		key.Item = item
	}

	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("index %q is not a number", s)
	}
	if n < 0 || s != strconv.Itoa(n) {
		return 0, fmt.Errorf("index %q is not canonical", s)
	}
	return n, nil
}
