package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

const productPage = `<!DOCTYPE html>
<html><body>
<h1 class="line-clamp-3"> Panadol Extra 500mg </h1>
<div class="text-xl font-bold text-primary-500">12.000 ₫</div>
<p class="text-sm leading-5 text-neutral-600">Mã sản phẩm: P00123</p>
<a class="text-sm leading-5 text-primary-500">Thương hiệu: Panadol</a>

<img src="https://prod-cdn.pharmacity.io/e-com/images/ecommerce/500x500/P00123_1.jpg"
     srcset="https://prod-cdn.pharmacity.io/e-com/images/ecommerce/500x500/P00123_1.jpg 1x, https://prod-cdn.pharmacity.io/e-com/images/ecommerce/1080x1080/P00123_1.jpg 2x">
<img src="https://prod-cdn.pharmacity.io/e-com/images/ecommerce/828x828/P00123_2.png?v=1">
<img src="https://prod-cdn.pharmacity.io/e-com/images/ecommerce/828x828/P00999_1.jpg">
<img src="https://other.example.com/P00123_banner.jpg">

<div id="radix-r1">
  <div id="mo-ta"><p>Giảm đau, hạ sốt nhanh.</p><p>second</p></div>
  <div id="thanh-phan"><ul><li> Paracetamol 500mg </li><li>Caffeine 65mg</li></ul></div>
  <div id="chi-dinh"><ul><li>Đau đầu</li><li>Sốt</li></ul></div>
  <div id="huong-dan-su-dung">
    <ul><li>Người lớn: 1-2 viên</li></ul>
    <p>Cách dùng khác</p>
    <p>Dùng đường uống.</p>
  </div>
  <div id="than-trong">
    <h3>Tác dụng phụ</h3>
    <p>note</p>
    <ul><li>Buồn nôn</li></ul>
    <h3>Chống chỉ định</h3>
    <ul><li>Suy gan nặng</li></ul>
    <h2>Thận trọng khi sử dụng</h2>
    <ul><li>Phụ nữ có thai</li><li>Người cao tuổi</li></ul>
  </div>
</div>
</body></html>`

func TestParseProductFullPage(t *testing.T) {
	rec, err := ParseProduct("panadol-extra", productPage)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "panadol-extra", rec.Slug)
	assert.Equal(t, "Panadol Extra 500mg", rec.Name)
	assert.Equal(t, "12.000 ₫", rec.Price)
	assert.Equal(t, "Mã sản phẩm: P00123", rec.SKU)
	assert.Equal(t, "Panadol", rec.Brand)
	assert.Equal(t, "Giảm đau, hạ sốt nhanh.", rec.Description)
	assert.Equal(t, []string{"Paracetamol 500mg", "Caffeine 65mg"}, rec.Ingredients)
	assert.Equal(t, []string{"Đau đầu", "Sốt"}, rec.Usage)
	assert.Equal(t, []string{"Người lớn: 1-2 viên"}, rec.UsageInstructions)
	assert.Equal(t, "Dùng đường uống.", rec.UsageMethod)
	assert.Equal(t, []string{"Buồn nôn"}, rec.SideEffects)
	assert.Equal(t, []string{"Suy gan nặng"}, rec.Contraindications)
	assert.Equal(t, []string{"Phụ nữ có thai", "Người cao tuổi"}, rec.Precautions)

	assert.Equal(t, []string{
		"https://prod-cdn.pharmacity.io/e-com/images/ecommerce/1080x1080/P00123_1.jpg",
	}, rec.Images)
}

func TestParseProductPartialPage(t *testing.T) {
	// Heading never rendered: everything degrades to sentinels, not a nil record.
	rec, err := ParseProduct("slow-page", `<html><body><div>loading</div></body></html>`)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, types.NotFound, rec.Name)
	assert.Equal(t, types.NotFound, rec.Price)
	assert.Equal(t, types.NotFound, rec.SKU)
	assert.Equal(t, types.NotFound, rec.Brand)
	assert.Equal(t, types.NotFound, rec.Description)
	assert.Empty(t, rec.Images)
	assert.NotNil(t, rec.Ingredients)
	assert.NotNil(t, rec.SideEffects)
}

func TestProductSKU(t *testing.T) {
	assert.Equal(t, "P00123", ProductSKU("Mã sản phẩm: P00123"))
	assert.Equal(t, "p42", ProductSKU("sku p42"))
	assert.Equal(t, "", ProductSKU(types.NotFound))
}

func TestCandidateURLsPrefersLastSrcsetEntry(t *testing.T) {
	cands := []ImageCandidate{
		{
			Src:    "https://cdn.pharmacity.io/500x500/P1_1.jpg",
			SrcSet: "https://cdn.pharmacity.io/500x500/P1_1.jpg 1x, https://cdn.pharmacity.io/828x828/P1_1.jpg 2x",
		},
		{Src: "https://cdn.pharmacity.io/500x500/P2_1.jpg"},
	}
	got := CandidateURLs("P1", cands)
	assert.Equal(t, []string{
		"https://cdn.pharmacity.io/828x828/P1_1.jpg",
		"https://cdn.pharmacity.io/500x500/P1_1.jpg",
	}, got)
}

func TestSelectImages(t *testing.T) {
	urls := []string{
		"https://cdn.pharmacity.io/500x500/P7_1.jpg",
		"https://cdn.pharmacity.io/828x828/P7_1.jpg",
		"https://cdn.pharmacity.io/1080x1080/P7_1.jpg?v=2",
		"https://cdn.pharmacity.io/1080x1080/P7-box.webp",
		"https://cdn.pharmacity.io/1080x1080/P8_1.jpg",
	}
	got := SelectImages("P7", urls)
	assert.Equal(t, []string{
		"https://cdn.pharmacity.io/1080x1080/P7_1.jpg?v=2",
		"https://cdn.pharmacity.io/1080x1080/P7-box.webp",
	}, got)

	assert.Empty(t, SelectImages("", urls))
}

func TestFileBase(t *testing.T) {
	assert.Equal(t, "P7", FileBase("https://x/1080x1080/P7_12.jpg?w=1"))
	assert.Equal(t, "P7-box", FileBase("https://x/P7-box.webp"))
	assert.Equal(t, "a.b", FileBase("https://x/a.b.jpg"))
	assert.Equal(t, "", FileBase("https://x/noext"))
}
