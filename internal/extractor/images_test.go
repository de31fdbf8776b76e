package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestImageRules() *ImageRules {
	return NewImageRules([]string{"kakaku.k-img.com"}, "https://kakaku.com")
}

func TestImageRulesValid(t *testing.T) {
	r := newTestImageRules()

	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"cdn jpg", "https://img1.kakaku.k-img.com/images/productimage/l/K0001234567.jpg", true},
		{"cdn webp with query", "https://img1.kakaku.k-img.com/images/productimage/l/K0001234567.webp?v=2", true},
		{"cdn png", "https://img1.kakaku.k-img.com/images/a.png", true},
		{"placeholder noimage", "https://img1.kakaku.k-img.com/images/noimage_l.jpg", false},
		{"loading gif", "https://img1.kakaku.k-img.com/images/loading.gif", false},
		{"blank gif", "https://img1.kakaku.k-img.com/images/blank.gif", false},
		{"foreign host", "https://cdn.example.com/images/product.jpg", false},
		{"wrong extension", "https://img1.kakaku.k-img.com/images/product.svg", false},
		{"too short", "/a/b.jpg", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Valid(tc.url))
		})
	}
}

func TestImageRulesNormalize(t *testing.T) {
	r := newTestImageRules()

	assert.Equal(t,
		"https://img1.kakaku.k-img.com/images/productimage/l/K1.jpg",
		r.Normalize("//img1.kakaku.k-img.com/images/productimage/l/K1.jpg"),
		"protocol-relative becomes https")

	assert.Equal(t,
		"https://kakaku.com/images/productimage/l/K1.jpg",
		r.Normalize("/images/productimage/s/K1.jpg"),
		"root-relative resolves against the site base and upgrades resolution")

	assert.Equal(t,
		"https://img1.kakaku.k-img.com/images/productimage/l/K1_l.jpg",
		r.Normalize("https://img1.kakaku.k-img.com/images/productimage/m/K1_m.jpg"),
		"medium path and suffix markers both upgrade")

	already := "https://img1.kakaku.k-img.com/images/productimage/l/K1.jpg"
	assert.Equal(t, already, r.Normalize(already))
}
