package mcpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

const (
	toolExtractText = "extract_text"
	toolExportText  = "export_text"
)

// Tools exposes synchronous extraction and export to MCP clients.
type Tools struct {
	extractor ports.TextExtractor
	exporter  ports.TextExporter
	logger    *slog.Logger
}

func NewTools(extractor ports.TextExtractor, exporter ports.TextExporter, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{extractor: extractor, exporter: exporter, logger: logger}
}

// NewServer registers every tool on a fresh MCP server.
func (t *Tools) NewServer(name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(toolExtractText,
		mcp.WithDescription("Extract all visible text from an image or PDF and return it as plain text."),
		mcp.WithString("image_base64",
			mcp.Required(),
			mcp.Description("Base64 image bytes. A data URL is accepted as well."),
		),
		mcp.WithString("mime_type",
			mcp.Description("Declared media type, for example image/png."),
		),
		mcp.WithString("filename",
			mcp.Description("Original file name used in logs and exports."),
		),
	), t.handleExtractText)

	s.AddTool(mcp.NewTool(toolExportText,
		mcp.WithDescription("Render a list of extracted texts into a document returned as an embedded base64 resource."),
		mcp.WithArray("texts",
			mcp.Required(),
			mcp.Description("Texts in display order, one per image."),
			mcp.WithStringItems(),
		),
		mcp.WithString("format",
			mcp.Description("Export format."),
			mcp.Enum(string(domain.FormatDOCX), string(domain.FormatXLSX), string(domain.FormatHTML), string(domain.FormatMarkdown)),
		),
	), t.handleExportText)

	return s
}

func (t *Tools) handleExtractText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("image_base64")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := decodeImage(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filename := req.GetString("filename", "image")
	result, err := t.extractor.ExtractOne(ctx, domain.Upload{
		Filename: filename,
		MimeType: req.GetString("mime_type", ""),
		Size:     int64(len(data)),
		Data:     data,
	})
	if err != nil {
		t.logger.Warn("mcp_extract_rejected", "filename", filename, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if result.Failed() {
		return mcp.NewToolResultError(domain.MsgExtractionFailed), nil
	}

	t.logger.Info("mcp_extract_completed",
		"filename", filename,
		"engine", result.Engine,
		"chars", len(result.Text),
		"duration_ms", result.DurationMS,
	)
	return mcp.NewToolResultText(result.Text), nil
}

func (t *Tools) handleExportText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	texts, err := req.RequireStringSlice("texts")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, ok := domain.ParseExportFormat(req.GetString("format", ""))
	if !ok {
		return mcp.NewToolResultError("unsupported export format"), nil
	}

	artifact, data, err := t.exporter.ExportTexts(ctx, texts, format)
	if err != nil {
		t.logger.Warn("mcp_export_failed", "format", format, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return mcp.NewToolResultResource(string(summary), mcp.BlobResourceContents{
		URI:      exportURI(*artifact),
		MIMEType: artifact.ContentType,
		Blob:     base64.StdEncoding.EncodeToString(data),
	}), nil
}

func exportURI(artifact domain.ExportArtifact) string {
	return "textify://exports/" + artifact.ID + "/" + artifact.Filename
}

func decodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		comma := strings.IndexByte(raw, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		raw = raw[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("image_base64 is not valid base64: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image_base64 is empty")
	}
	return data, nil
}
