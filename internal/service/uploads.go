package service

import (
	"context"

	"gorahrib/internal/storage"
)

// uploadImages processes and stores files in order. When one fails, the
// files already stored are deleted and the error is returned.
func uploadImages(ctx context.Context, store storage.ObjectStore, images *ImageProcessor, files []UploadFile, folder string) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		processed, err := images.Process(f)
		if err != nil {
			store.DeleteFiles(ctx, urls)
			return nil, err
		}
		url, err := store.Upload(ctx, processed.Data, processed.Name, folder, processed.ContentType)
		if err != nil {
			store.DeleteFiles(ctx, urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// discardFiles deletes files after a commit or a failed transaction.
// DeleteFiles never fails loudly, so this is safe to defer.
func discardFiles(ctx context.Context, store storage.ObjectStore, urls []string) {
	if store == nil || len(urls) == 0 {
		return
	}
	store.DeleteFiles(context.WithoutCancel(ctx), urls)
}
