package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive uploads artifacts into Google Drive folders
type Drive struct {
	service *drive.Service
}

// NewDrive creates a Drive archive client
func NewDrive(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	opts = append([]option.ClientOption{option.WithScopes(drive.DriveScope)}, opts...)
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Drive{service: service}, nil
}

// Upload creates a PNG file named name inside folderID and returns its
// download link. An empty folderID uploads to the root of the drive.
func (d *Drive) Upload(ctx context.Context, name string, data []byte, folderID string) (string, error) {
	file := &drive.File{Name: name}
	if folderID != "" {
		file.Parents = []string{folderID}
	}

	created, err := d.service.Files.Create(file).
		Media(bytes.NewReader(data), googleapi.ContentType("image/png")).
		Fields("id", "webContentLink", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	slog.Debug("Created drive file", "name", name, "file_id", created.Id)

	switch {
	case created.WebContentLink != "":
		return created.WebContentLink, nil
	case created.WebViewLink != "":
		return created.WebViewLink, nil
	case created.Id != "":
		return fmt.Sprintf("https://drive.google.com/uc?id=%s&export=download", created.Id), nil
	default:
		return "", fmt.Errorf("drive returned no file reference for %s", name)
	}
}
