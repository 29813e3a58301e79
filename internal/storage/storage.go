// Package storage uploads public blobs such as event images.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	firebase "firebase.google.com/go"
	"github.com/google/uuid"
)

// Firebase writes objects to a Firebase Storage bucket with a public-read ACL.
type Firebase struct {
	app    *firebase.App
	bucket string
}

func NewFirebase(app *firebase.App, bucket string) *Firebase {
	return &Firebase{app: app, bucket: bucket}
}

// Upload stores r under a fresh name inside dir and returns its public URL.
func (f *Firebase) Upload(ctx context.Context, dir, filename, contentType string, r io.Reader) (string, error) {
	const op = "storage.Firebase.Upload"

	client, err := f.app.Storage(ctx)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	bucket, err := client.Bucket(f.bucket)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	name := objectName(dir, filename)

	w := bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.PredefinedACL = "publicRead"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%s:%w", op, err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return publicURL(f.bucket, name), nil
}

func objectName(dir, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(dir, uuid.NewString()+ext)
}

func publicURL(bucket, name string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + name
}
