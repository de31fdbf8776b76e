package extractor

// Selector candidates are tried in order; the first match wins. The target
// site's markup is an external, unstable contract, so these lists are
// illustrative defaults that survive moderate drift and can be overridden
// via configuration for the listing container.

var defaultListingSelectors = []string{
	".c-list1_cell.p-resultItem",
	".p-resultItem",
	".c-list1_cell",
	".itemList .item",
}

var listingNameSelectors = []string{
	".p-item_name a",
	".p-item_name",
	"h3 a",
	".itemName a",
}

var listingPriceSelectors = []string{
	"em.p-item_priceNum",
	".p-item_price em",
	".p-item_price",
	".price",
}

var listingMakerSelectors = []string{
	".p-item_maker",
	".maker",
}

var listingRatingSelectors = []string{
	".p-item_star_rating_num",
	".rating .num",
}

var listingImageSelectors = []string{
	"img.p-item_visual_entity",
	".p-item_visual img",
	"img",
}

var detailNameSelectors = []string{
	`h1[itemprop="name"]`,
	"#productAll h1",
	".productTitle h1",
	"h1",
	".itemName",
}

var detailImageSelectors = []string{
	`#imgBox img[itemprop="image"]`,
	"#productAll img",
	".productImage img",
	`img[alt*="製品画像"]`,
}

var detailPriceSelectors = []string{
	".priceTxt",
	".price",
}

var detailPriceRangeSelectors = []string{
	".subInfoObj4",
	".priceRange",
}

var detailMakerSelectors = []string{
	".maker",
}

var detailMakerURLSelectors = []string{
	"#makerInfo a",
	".makerLink a",
}

var detailRatingSelectors = []string{
	`span[itemprop="ratingValue"]`,
	".rating .num",
}

var detailReviewCountSelectors = []string{
	`span[itemprop="reviewCount"]`,
	".rating .count",
}

var detailRankingSelectors = []string{
	"#rankCate ul li",
	".ranking li",
}

var detailStoreRowSelectors = []string{
	".p-priceTable_row",
	".priceTable tr",
	"tr",
}
