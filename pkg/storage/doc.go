// Package storage uploads media for Image fields to S3-compatible object
// storage.
//
//	store, err := storage.NewS3(cfg.Storage)
//	app := trellis.New(trellis.WithStorage(store))
//
//	// in an action
//	info, err := c.Upload(file, header.Size, storage.WithPrefix("media"), storage.ImagesOnly())
//	url, err := c.FileURL(info.Key)
//
// Content types are sniffed from the data unless WithContentType is given.
// Generated keys are "<prefix>/<ULID><ext>". Memory implements Storage for
// development and tests.
package storage
