// Package tax holds the prompt templates and reference data the extraction
// pipeline feeds to the model.
package tax

import "fmt"

const (
	// ScanSystemPrompt frames the model as a tax-document spotter for the
	// email scan step.
	ScanSystemPrompt = "You are an expert at identifying tax documents in emails."

	// DocumentSystemPrompt frames the model for single-document extraction.
	DocumentSystemPrompt = "You are a tax document analyzer. Extract key information from tax documents."

	// FilingSystemPrompt frames the model for filing-requirement research.
	FilingSystemPrompt = "You are a tax expert with access to the latest IRS and state tax authority information."

	// ExpenseSystemPrompt frames the model for expense classification.
	ExpenseSystemPrompt = "You are a tax expert specializing in expense classification."

	// CSVSystemPrompt frames the model for standardizing bank CSV exports.
	CSVSystemPrompt = "You are a CSV parser specialized in financial documents."

	// PDFSystemPrompt frames the model for pulling transactions out of bank
	// statement PDFs.
	PDFSystemPrompt = "You are a PDF parser specialized in financial documents."
)

// jsonOnlyNote closes every prompt; the extractor still strips fences when a
// model ignores it.
const jsonOnlyNote = "Return ONLY the JSON with no markdown formatting, no code blocks, and no additional text."

// ScanPrompt asks the model to pick tax documents out of a JSON list of
// email summaries.
func ScanPrompt(emailsJSON string) string {
	return fmt.Sprintf(`Analyze these emails and identify any that likely contain tax documents like W2s, 1099s, etc.

Emails:
%s

For each email that likely contains a tax document, provide:
1. The email ID
2. The type of tax document (W2, 1099-MISC, 1099-NEC, 1099-K, 1099-INT, 1099-DIV, or Other)
3. The sender
4. The date
5. The subject
6. The preview text

Format your response as a JSON array of objects with these fields:
[
  {
    "id": "string",
    "type": "DocumentType",
    "sender": "email@example.com",
    "date": "YYYY-MM-DD",
    "subject": "Subject line",
    "preview": "Preview text"
  }
]

%s`, emailsJSON, jsonOnlyNote)
}

// DocumentPrompt asks the model to extract structured fields from one
// uploaded tax document.
func DocumentPrompt(filename, contentType, content string) string {
	return fmt.Sprintf(`Extract key information from this tax document.

The document is named %q and is of type %q.

Document content:
%s

Extract the following information:
- Document type (W2, 1099-MISC, 1099-NEC, 1099-K, 1099-INT, 1099-DIV, or Other)
- Issuer/Sender name
- Tax year
- Key financial figures (income, withholding, etc.)

Format your response as a JSON object with these fields:
{
  "documentType": "string",
  "issuer": "string",
  "taxYear": "string",
  "financialData": {
    "key1": "value1",
    "key2": "value2"
  }
}

%s`, filename, contentType, content, jsonOnlyNote)
}

// EmailContentPrompt asks the model to extract tax fields from pasted email
// text. Unlike DocumentPrompt it tells the model to guess when the content
// does not look like a tax document.
func EmailContentPrompt(content string) string {
	return fmt.Sprintf(`Extract key information from this email content that appears to contain tax information.

Here is the email content:
%s

Extract the following information:
- Document type (W2, 1099-MISC, 1099-NEC, 1099-K, 1099-INT, 1099-DIV, or Other)
- Issuer/Sender name
- Tax year
- Key financial figures (income, withholding, etc.)

Format your response as a JSON object with these fields:
{
  "documentType": "string",
  "issuer": "string",
  "taxYear": "string",
  "financialData": {
    "key1": "value1",
    "key2": "value2"
  }
}

If the email doesn't appear to contain tax document information, make your best guess about what type of document it might be and extract any relevant financial information.

%s`, content, jsonOnlyNote)
}

// FilingPrompt asks the model whether a person with the given profile must
// file federal and state taxes. State and filing status arrive already
// expanded to their display names.
func FilingPrompt(stateFullName string, age int, income float64, filingStatus string) string {
	return fmt.Sprintf(`Research and provide accurate, up-to-date information about tax filing requirements for a person with the following details:
- Age: %d
- Annual Income: $%.2f
- Filing Status: %s
- State of Residence: %s

Determine if this person is required to file federal and/or state taxes based on their situation.

Include the following information:
1. Whether they MUST file taxes (true/false)
2. A clear explanation of why they must or don't need to file
3. Required federal tax forms if they need to file (or should file even if not required)
4. Required state tax forms specific to %s (if applicable)
5. Federal and state tax rates that would apply to their income level
6. Important tax filing deadlines they should be aware of
7. An excerpt from the IRS or %s state tax authority website that contains this information
8. Include the source URL where this information was found

Format your response as a JSON object with the following structure:
{
  "mustFile": boolean,
  "filingRequirementReason": "Clear explanation of why they must or don't need to file",
  "requiredFederalForms": ["Form 1", "Form 2"],
  "requiredStateForms": ["Form 1", "Form 2"],
  "taxRates": "Description of tax rates that apply to this person",
  "deadlines": "Important tax filing deadlines",
  "sourceExcerpt": "Direct quote from IRS or state tax authority",
  "sourceUrl": "URL of the source"
}

%s`, age, income, filingStatus, stateFullName, stateFullName, stateFullName, jsonOnlyNote)
}

// ExpensePrompt asks the model to classify a JSON list of transactions for
// tax purposes. Totals the model reports are recomputed server-side.
func ExpensePrompt(transactionsJSON string) string {
	return fmt.Sprintf(`Classify these transactions for tax purposes:
%s

For each transaction:
1. Assign a business category (Business Services, Office Supplies, Travel, Meals, Utilities, Rent, Software, Hardware, Marketing, Other)
2. Determine if it's tax deductible (true/false)
3. Assign a confidence score (0.0-1.0) for your classification
4. Assign a unique ID

Format your response as a JSON object with this structure:
{
  "expenses": [
    {
      "id": "string",
      "date": "YYYY-MM-DD",
      "description": "string",
      "amount": number,
      "category": "string",
      "deductible": boolean,
      "confidence": number
    }
  ]
}

%s`, transactionsJSON, jsonOnlyNote)
}

// CSVStandardizePrompt asks the model to normalize raw CSV rows into the
// date/description/amount transaction shape.
func CSVStandardizePrompt(rowsJSON string) string {
	return fmt.Sprintf(`Standardize this transaction data from a CSV file.

Here's the parsed CSV data:
%s

Convert this data to a standardized format with these fields:
- date: transaction date in YYYY-MM-DD format
- description: merchant name or transaction description
- amount: transaction amount as a number (positive for deposits, negative for withdrawals)

%s`, rowsJSON, jsonOnlyNote)
}

// PDFTransactionsPrompt asks the model to pull transactions out of bank
// statement text extracted from a PDF.
func PDFTransactionsPrompt(statementText string) string {
	return fmt.Sprintf(`Extract transaction data from this bank statement.

Statement text:
%s

Extract and format the transactions as a JSON array with these fields:
- date: transaction date in YYYY-MM-DD format
- description: merchant name or transaction description
- amount: transaction amount as a number (positive for deposits, negative for withdrawals)

%s`, statementText, jsonOnlyNote)
}
