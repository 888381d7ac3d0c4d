package pipeline

import (
	"fmt"
	"strings"

	"github.com/sia-group/procure-agent/internal/model"
)

// productSchemaJSON is the output schema sent with every SmartScraper call.
// Field names match model.Product's JSON tags exactly so responses decode
// without remapping.
const productSchemaJSON = `{
  "type": "object",
  "properties": {
    "product_title": {"type": "string"},
    "product_image_url": {"type": "string"},
    "product_url": {"type": "string"},
    "product_current_price": {"type": "number"},
    "product_original_price": {"type": ["number", "null"]},
    "product_discount_percentage": {"type": ["number", "null"]},
    "product_specs": {
      "type": "array",
      "minItems": 1,
      "maxItems": 5,
      "items": {
        "type": "object",
        "properties": {
          "specification_name": {"type": "string"},
          "specification_value": {"type": "string"}
        },
        "required": ["specification_name", "specification_value"]
      }
    },
    "recommendation_rank": {"type": "integer", "minimum": 1, "maximum": 5, "description": "Rank out of 5, higher is better"},
    "recommendation_notes": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["product_title", "product_current_price", "product_specs", "recommendation_rank"]
}`

func systemPrompt(companyContext string) string {
	return "You are a senior procurement specialist researching product purchases " +
		"across e-commerce platforms. You compare offers rigorously and always " +
		"respond in the exact format requested, with no commentary outside it.\n\n" +
		"Buyer context: " + companyContext
}

func queriesPrompt(job model.Job) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Suggest up to %d search queries for buying %q online in %s.\n\n",
		job.MaxKeywords, job.ProductName, job.Country)
	sb.WriteString("Requirements:\n")
	fmt.Fprintf(&sb, "- Queries must be written in %s.\n", job.Language)
	sb.WriteString("- Vary the queries: include brand and model variants, spec-focused phrasings, and deal-focused phrasings.\n")
	sb.WriteString("- Each query must be specific enough to surface individual product pages, not category indexes.\n")
	fmt.Fprintf(&sb, "- Target these stores: %s.\n", strings.Join(job.Websites, ", "))
	sb.WriteString("\nRespond with JSON only, in the shape {\"queries\": [\"...\"]}.")
	return sb.String()
}

func scrapePrompt(job model.Job) string {
	return fmt.Sprintf(
		"Extract the product offer details for %q from this page. "+
			"Include the title, image URL, canonical product URL, current price, "+
			"original price and discount percentage if the listing is discounted, "+
			"one to five key specifications ordered by how useful they are for "+
			"comparison, a recommendation rank from 1 to 5 where higher is "+
			"better, and short "+
			"recommendation notes written in %s.",
		job.ProductName, job.Language)
}

func reportPrompt(job model.Job, productsJSON string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a professional procurement comparison report in %s for buying %q in %s.\n\n",
		job.Language, job.ProductName, job.Country)
	sb.WriteString("Extracted product data (entries may be null where a page could not be read):\n")
	sb.WriteString(productsJSON)
	sb.WriteString("\n\nProduce a complete standalone HTML document styled with Bootstrap from its CDN. ")
	sb.WriteString("Structure it with exactly these sections:\n")
	sb.WriteString("1. Executive Summary\n")
	sb.WriteString("2. Introduction\n")
	sb.WriteString("3. Methodology\n")
	sb.WriteString("4. Findings\n")
	sb.WriteString("5. Product Comparison Table (prices, discounts, specifications, links and images)\n")
	sb.WriteString("6. Analysis and Recommendations (call out the best value option and why)\n")
	sb.WriteString("7. Conclusion\n")
	sb.WriteString("8. Appendices (sources and any pages that could not be read)\n")
	sb.WriteString("\nRespond with the HTML document only.")
	return sb.String()
}
