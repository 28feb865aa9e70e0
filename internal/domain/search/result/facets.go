package result

// Facets are aggregated counts over listing fields, used by filtering UIs.
type Facets struct {
	Categories       []TermBucket      `json:"categories,omitempty"`
	Tags             []TermBucket      `json:"tags,omitempty"`
	PricingModels    []TermBucket      `json:"pricing_models,omitempty"`
	ComplianceLevels []TermBucket      `json:"compliance_levels,omitempty"`
	AvgRating        float64           `json:"avg_rating"`
	PriceRanges      []HistogramBucket `json:"price_ranges,omitempty"`
}

// TermBucket is one value of a term aggregation with its document count.
type TermBucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// HistogramBucket is one interval of a histogram aggregation.
type HistogramBucket struct {
	Key   float64 `json:"key"`
	Count int     `json:"count"`
}

// ParseFacets extracts facets from raw index aggregation output.
// Unknown or malformed aggregations are skipped, never an error: facets
// are advisory and must not fail a search that produced hits.
func ParseFacets(aggs map[string]any) *Facets {
	if len(aggs) == 0 {
		return nil
	}
	f := &Facets{
		Categories:       termBuckets(aggs, "categories"),
		Tags:             termBuckets(aggs, "tags"),
		PricingModels:    termBuckets(aggs, "pricing_models"),
		ComplianceLevels: termBuckets(aggs, "compliance_levels"),
		PriceRanges:      histogramBuckets(aggs, "price_ranges"),
	}
	if avg, ok := aggs["avg_rating"].(map[string]any); ok {
		if v, ok := avg["value"].(float64); ok {
			f.AvgRating = v
		}
	}
	return f
}

func termBuckets(aggs map[string]any, name string) []TermBucket {
	var out []TermBucket
	for _, b := range rawBuckets(aggs, name) {
		key, ok := b["key"].(string)
		if !ok {
			continue
		}
		out = append(out, TermBucket{Value: key, Count: docCount(b)})
	}
	return out
}

func histogramBuckets(aggs map[string]any, name string) []HistogramBucket {
	var out []HistogramBucket
	for _, b := range rawBuckets(aggs, name) {
		key, ok := b["key"].(float64)
		if !ok {
			continue
		}
		out = append(out, HistogramBucket{Key: key, Count: docCount(b)})
	}
	return out
}

func rawBuckets(aggs map[string]any, name string) []map[string]any {
	agg, ok := aggs[name].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := agg["buckets"].([]any)
	if !ok {
		return nil
	}
	buckets := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			buckets = append(buckets, m)
		}
	}
	return buckets
}

func docCount(b map[string]any) int {
	if c, ok := b["doc_count"].(float64); ok {
		return int(c)
	}
	return 0
}
