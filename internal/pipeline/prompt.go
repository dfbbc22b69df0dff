package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/lehigh-university-libraries/mockups/internal/catalog"
)

// SystemInstruction is sent with every prompt synthesis request
const SystemInstruction = `You write image prompts for AI product mockup generators such as DALL-E and Stable Diffusion.

You receive structured product data as JSON. "Description" is always present. "Category", "Color", "Material" and "Additional Notes" may be missing, null or empty.

Your task:
- Understand the product from the information given.
- Write exactly one visually rich text-to-image prompt for a clean, realistic product mockup.
- The image must contain no logos and no text.
- Include the color and material when they are provided.
- When a category or usage context is available (baby, home, office), add fitting background and staging.
- Be specific and concise, 1-2 sentences at most.
- Output only the prompt string.

Example input:
{"Description": "Silicone baby feeding set with bowl, plate, and spoon.", "Category": "Baby Products", "Color": "Pastel Blue", "Material": "Food-grade silicone", "Additional Notes": "For toddler self-feeding, suction base"}

Example output:
A pastel blue silicone baby feeding set (bowl, plate, spoon) on a wooden high chair tray in a soft-lit kitchen, toddler setting, clean background`

const payloadPrefix = "Generate a product mockup image prompt from:\n"

// ProductInput is the structured payload handed to the prompt synthesizer.
// Absent attributes marshal as null and blank ones as "".
type ProductInput struct {
	Description     string  `json:"Description"`
	Category        *string `json:"Category"`
	Color           *string `json:"Color"`
	Material        *string `json:"Material"`
	AdditionalNotes *string `json:"Additional Notes"`
}

// NewProductInput copies the descriptive fields of r without substitution
func NewProductInput(r catalog.Record) ProductInput {
	return ProductInput{
		Description:     r.Description,
		Category:        r.Category,
		Color:           r.Color,
		Material:        r.Material,
		AdditionalNotes: r.Notes,
	}
}

// UserPayload renders the user message for the prompt synthesizer
func (p ProductInput) UserPayload() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal product input: %w", err)
	}
	return payloadPrefix + string(data), nil
}

// LocalName is the file name of a record's local artifact
func LocalName(id string) string {
	return fmt.Sprintf("mockup_id_%s.png", id)
}

// RemoteName is the file name of a record's archived artifact
func RemoteName(id string) string {
	return fmt.Sprintf("generated_id_%s.png", id)
}
