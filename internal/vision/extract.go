package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// BusinessCardData is the normalized shape extracted from a business card.
// Confidence reflects the model's own certainty, 0..1.
type BusinessCardData struct {
	Name       string  `json:"name"`
	Title      string  `json:"title,omitempty"`
	Company    string  `json:"company,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Email      string  `json:"email,omitempty"`
	Address    string  `json:"address,omitempty"`
	Website    string  `json:"website,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// LicenseData is the normalized shape extracted from a liquor license.
type LicenseData struct {
	LicenseNumber string  `json:"licenseNumber"`
	BusinessName  string  `json:"businessName"`
	LicenseType   string  `json:"licenseType,omitempty"`
	IssuedDate    string  `json:"issuedDate,omitempty"`
	ExpiryDate    string  `json:"expiryDate,omitempty"`
	State         string  `json:"state,omitempty"`
	Address       string  `json:"address,omitempty"`
	Restrictions  string  `json:"restrictions,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// Extractor is the interface the queue and scan processor depend on.
type Extractor interface {
	ExtractBusinessCard(ctx context.Context, imageURL string) (*BusinessCardData, error)
	ExtractLiquorLicense(ctx context.Context, imageURL string) (*LicenseData, error)
}

const businessCardPrompt = `You are reading a photo of a business card. ` +
	`Return ONLY a JSON object with these keys: ` +
	`"name" (required), "title", "company", "phone", "email", "address", "website", "notes", ` +
	`and "confidence" (a number between 0 and 1 reflecting how certain you are). ` +
	`Omit any key you cannot read. No prose, no markdown fences.`

const liquorLicensePrompt = `You are reading a photo of a liquor license. ` +
	`Return ONLY a JSON object with these keys: ` +
	`"licenseNumber" (required), "businessName" (required), "licenseType", "issuedDate", ` +
	`"expiryDate", "state", "address", "restrictions", "notes", ` +
	`and "confidence" (a number between 0 and 1 reflecting how certain you are). ` +
	`Dates as YYYY-MM-DD. Omit any key you cannot read. No prose, no markdown fences.`

// ExtractBusinessCard extracts structured contact data from an image URL.
// Name is the only required field; everything else passes through verbatim.
func (c *Client) ExtractBusinessCard(ctx context.Context, imageURL string) (*BusinessCardData, error) {
	data, err := c.extractBusinessCard(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("Business card extraction failed: %w", err)
	}
	return data, nil
}

func (c *Client) extractBusinessCard(ctx context.Context, imageURL string) (*BusinessCardData, error) {
	text, err := c.complete(ctx, businessCardPrompt, imageURL)
	if err != nil {
		return nil, err
	}
	raw, err := firstJSONObject(text)
	if err != nil {
		return nil, err
	}
	if err := ValidateJSONAgainstSchema(BuildBusinessCardJSONSchema(), raw); err != nil {
		return nil, err
	}
	var data BusinessCardData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal business card fields: %w", err)
	}
	if strings.TrimSpace(data.Name) == "" {
		return nil, fmt.Errorf("could not extract name from business card")
	}
	c.log.Info("vision.extract.business_card.ok", "name", data.Name, "confidence", data.Confidence)
	return &data, nil
}

// ExtractLiquorLicense extracts structured license data from an image URL.
// LicenseNumber and BusinessName are both required.
func (c *Client) ExtractLiquorLicense(ctx context.Context, imageURL string) (*LicenseData, error) {
	data, err := c.extractLiquorLicense(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("Liquor license extraction failed: %w", err)
	}
	return data, nil
}

func (c *Client) extractLiquorLicense(ctx context.Context, imageURL string) (*LicenseData, error) {
	text, err := c.complete(ctx, liquorLicensePrompt, imageURL)
	if err != nil {
		return nil, err
	}
	raw, err := firstJSONObject(text)
	if err != nil {
		return nil, err
	}
	if err := ValidateJSONAgainstSchema(BuildLicenseJSONSchema(), raw); err != nil {
		return nil, err
	}
	var data LicenseData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal license fields: %w", err)
	}
	if strings.TrimSpace(data.LicenseNumber) == "" || strings.TrimSpace(data.BusinessName) == "" {
		return nil, fmt.Errorf("could not extract required license information")
	}
	c.log.Info("vision.extract.license.ok", "license_number", data.LicenseNumber, "business", data.BusinessName)
	return &data, nil
}

// firstJSONObject pulls the first brace-delimited object out of text. The
// prompt asks for JSON-only output but models sometimes wrap it in prose.
func firstJSONObject(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON found in model response")
	}
	return []byte(text[start : end+1]), nil
}
