package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateScrapedItemPayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"site_name":"outdoorsy",
		"source_url":"https://outdoorsy.example.com/barbour-wax-jacket",
		"brand":"barbour",
		"title":"Barbour Classic Wax Jacket",
		"color_text":"navy"
	}`)

	item, err := ValidateScrapedItemPayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if item.SiteName != "outdoorsy" {
		t.Fatalf("expected site_name=outdoorsy, got %q", item.SiteName)
	}
	if item.ColorText != "navy" {
		t.Fatalf("expected color_text=navy, got %q", item.ColorText)
	}
}

func TestValidateScrapedItemPayload_ColorOptional(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"site_name":"outdoorsy",
		"source_url":"https://outdoorsy.example.com/p/1",
		"brand":"barbour",
		"title":"Chelsea Boot"
	}`)

	item, err := ValidateScrapedItemPayload(payload)
	if err != nil {
		t.Fatalf("expected payload without color to be valid, got error: %v", err)
	}
	if item.ColorText != "" {
		t.Fatalf("expected empty color_text, got %q", item.ColorText)
	}
}

func TestValidateScrapedItemPayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"site_name":"outdoorsy",
		"brand":"barbour",
		"title":"No URL"
	}`)

	_, err := ValidateScrapedItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing source_url")
	}
}

func TestValidateScrapedItemPayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"site_name":"outdoorsy",
		"source_url":"https://outdoorsy.example.com/p/1",
		"brand":"barbour",
		"title":"   "
	}`)

	_, err := ValidateScrapedItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateScrapedItemPayload_BadScheme(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"site_name":"outdoorsy",
		"source_url":"ftp://outdoorsy.example.com/p/1",
		"brand":"barbour",
		"title":"Wax Jacket"
	}`)

	_, err := ValidateScrapedItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for non-http scheme")
	}
}

func TestValidateScrapedItemPayload_WrongVersion(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v2",
		"site_name":"outdoorsy",
		"source_url":"https://outdoorsy.example.com/p/1",
		"brand":"barbour",
		"title":"Wax Jacket"
	}`)

	_, err := ValidateScrapedItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for wrong payload_version")
	}
}

func TestValidateScrapedItemPayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"site_name":"outdoorsy",
		"source_url":"https://outdoorsy.example.com/p/1",
		"brand":"barbour",
		"title":"Wax Jacket"
	}{"extra":true}`)

	_, err := ValidateScrapedItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
}

func TestValidateScrapedItemPayload_UnknownField(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"site_name":"outdoorsy",
		"source_url":"https://outdoorsy.example.com/p/1",
		"brand":"barbour",
		"title":"Wax Jacket",
		"price":129.99
	}`)

	_, err := ValidateScrapedItemPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for unknown field")
	}
}
