package extractor

// Prompt languages.
const (
	LanguageEnglish = "en"
	LanguageMulti   = "multi"
)

const fieldSchema = `Required Fields:
- vendor_name: Company/vendor name (string)
- invoice_number: Invoice/bill number (string)
- invoice_date: Invoice date in YYYY-MM-DD format (string)
- total_amount: Total amount as number (float)
- currency: Currency code like USD, EUR, INR (string)

Optional Fields (if present):
- vendor_address: Vendor address (string)
- customer_name: Customer/client name (string)
- customer_address: Customer address (string)
- due_date: Payment due date in YYYY-MM-DD format (string)
- subtotal: Subtotal amount (float)
- tax_amount: Tax amount (float)
- discount_amount: Discount amount (float)
- line_items: Array of line items with description, quantity, unit_price, total (array)
`

const responseFormat = `For each extracted field, provide:
- value: The extracted value
- confidence: Confidence score from 0.0 to 1.0

Return ONLY valid JSON in this exact format:
{
  "vendor_name": {"value": "string", "confidence": 0.95},
  "invoice_number": {"value": "string", "confidence": 0.98},
  "invoice_date": {"value": "YYYY-MM-DD", "confidence": 0.90},
  "total_amount": {"value": 123.45, "confidence": 0.95},
  "currency": {"value": "USD", "confidence": 0.95},
  "vendor_address": {"value": "string", "confidence": 0.85},
  "customer_name": {"value": "string", "confidence": 0.90},
  "due_date": {"value": "YYYY-MM-DD", "confidence": 0.80},
  "subtotal": {"value": 100.00, "confidence": 0.90},
  "tax_amount": {"value": 23.45, "confidence": 0.85},
  "line_items": [
    {
      "description": "Item description",
      "quantity": 1,
      "unit_price": 100.00,
      "total": 100.00
    }
  ]
}

Important:
- Return ONLY the JSON object, no additional text
- Use null for missing values
- Ensure dates are in YYYY-MM-DD format
- Ensure amounts are numbers, not strings
- Be precise with the field names and structure`

// InvoicePrompt asks for the invoice field schema from an English document.
const InvoicePrompt = `You are an expert at extracting structured data from invoice documents. Analyze the provided invoice image and extract the following information in valid JSON format:

` + fieldSchema + `
` + responseFormat

// MultiLanguagePrompt asks for the same schema from documents in English or Hindi.
const MultiLanguagePrompt = `You are an expert at extracting structured data from invoice documents in multiple languages including English and Hindi. Analyze the provided invoice image and extract the following information in valid JSON format:

` + fieldSchema + `- language_detected: Detected language of the document (string)

` + responseFormat + `
- Handle both English and Hindi text appropriately`

// PromptFor returns the prompt for a configured language, defaulting to English.
func PromptFor(language string) string {
	if language == LanguageMulti {
		return MultiLanguagePrompt
	}
	return InvoicePrompt
}
