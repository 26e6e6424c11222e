// Package vision identifies retail products in photos with Gemini.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/pricelens/backend/internal/domain"
)

// MaxImageBytes is the largest image sent to the model
const MaxImageBytes = 5 << 20

const prompt = `Actúa como un experto en retail peruano. Analiza esta imagen de producto y extrae datos para un comparador de precios.

Responde SOLO con un objeto JSON válido, sin texto adicional:
{
  "productName": "Nombre comercial completo (Marca + Producto + Variante)",
  "brand": "Marca principal del producto",
  "quantity": "Contenido neto (ej: '1.5L', '500g', '6 pack') o null si no es legible",
  "category": "Una de: Bebidas, Abarrotes, Limpieza, Lácteos, Cuidado Personal, Tecnología, Snacks",
  "confidence": "high si el producto es claro, medium si hay dudas, low si no es retail"
}

Reglas:
- Identifica correctamente marcas peruanas (Bell's, Gloria, Inca Kola, Pilsen, etc.)
- Si es marca propia de supermercado (Tottus, Metro, Wong), menciónalo
- No inventes información que no veas claramente
- Para bebidas, especifica el sabor si es visible (ej: "Inca Kola Sin Azúcar 1.5L")`

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// generator is the part of the genai client we call
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type modelAnswer struct {
	ProductName string `json:"productName"`
	Brand       string `json:"brand"`
	Quantity    string `json:"quantity"`
	Category    string `json:"category"`
	Confidence  string `json:"confidence"`
}

// GeminiIdentifier implements domain.VisionIdentifier
type GeminiIdentifier struct {
	models generator
	model  string
	logger *zap.Logger
}

// NewGeminiIdentifier creates a Gemini-backed identifier
func NewGeminiIdentifier(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiIdentifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newIdentifier(client.Models, model, logger), nil
}

func newIdentifier(models generator, model string, logger *zap.Logger) *GeminiIdentifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiIdentifier{
		models: models,
		model:  model,
		logger: logger.Named("vision"),
	}
}

// Identify asks the model what product is in image
func (g *GeminiIdentifier) Identify(ctx context.Context, image []byte) (*domain.VisionResult, error) {
	mimeType, err := ValidateImage(image)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
		MaxOutputTokens:  500,
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrVisionFailure, err)
	}

	answer, err := parseAnswer(resp.Text())
	if err != nil {
		g.logger.Warn("unparseable model answer", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrVisionFailure, err)
	}

	result := toResult(answer)
	if result.Name == "" || result.Confidence == domain.ConfidenceLow {
		g.logger.Debug("low confidence identification",
			zap.String("name", answer.ProductName),
			zap.String("confidence", answer.Confidence))
		return nil, domain.ErrLowConfidence
	}

	g.logger.Info("product identified",
		zap.String("name", result.Name),
		zap.Stringer("confidence", result.Confidence))
	return result, nil
}

// ValidateImage checks size and format and returns the image MIME type
func ValidateImage(image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidImage)
	}
	if len(image) > MaxImageBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrInvalidImage, len(image), MaxImageBytes)
	}

	switch mimeType := http.DetectContentType(image); mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return mimeType, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %s", domain.ErrInvalidImage, mimeType)
	}
}

// parseAnswer decodes the model's JSON, falling back to the first {...}
// block when the model wraps it in prose or code fences.
func parseAnswer(text string) (*modelAnswer, error) {
	var answer modelAnswer
	if err := json.Unmarshal([]byte(text), &answer); err == nil {
		return &answer, nil
	}

	block := jsonObject.FindString(text)
	if block == "" {
		return nil, fmt.Errorf("no JSON object in answer")
	}
	if err := json.Unmarshal([]byte(block), &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

func toResult(a *modelAnswer) *domain.VisionResult {
	name := strings.TrimSpace(a.ProductName)
	quantity := strings.TrimSpace(a.Quantity)
	if strings.EqualFold(quantity, "null") {
		quantity = ""
	}
	if name != "" && quantity != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(quantity)) {
		name = name + " " + quantity
	}

	category := strings.TrimSpace(a.Category)
	if category == "" {
		category = "General"
	}

	return &domain.VisionResult{
		Name:       name,
		Brand:      strings.TrimSpace(a.Brand),
		Quantity:   quantity,
		Category:   category,
		Confidence: domain.ParseConfidence(a.Confidence),
	}
}
