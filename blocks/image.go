package blocks

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// ImageData is an encoded picture used as a texture. Data travels
// base64-encoded.
type ImageData struct {
	Name     string
	MimeType string
	Width    int
	Height   int
	Data     []byte
}

func (img *ImageData) Kind() ba.Kind { return KindImageData }

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// DecodeImage reads an encoded image and checks that it decodes. The
// decode runs on its own goroutine; if ctx ends first the result is
// discarded and ctx.Err() returned, nothing is stored anywhere.
func DecodeImage(ctx context.Context, name string, r io.Reader) (*ImageData, error) {
	type result struct {
		img *ImageData
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, err := decodeImage(name, r)
		done <- result{img, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.img, res.err
	}
}

func decodeImage(name string, r io.Reader) (*ImageData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", name)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", name)
	}
	if _, _, err = image.Decode(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrapf(err, "image %s", name)
	}
	return &ImageData{
		Name:     name,
		MimeType: mimeTypes[format],
		Width:    cfg.Width,
		Height:   cfg.Height,
		Data:     data,
	}, nil
}

func (img *ImageData) Pack(p *ba.Packer) protocol.Value {
	return protocol.Object{
		"name":      img.Name,
		"mime_type": img.MimeType,
		"size":      protocol.Array{float64(img.Width), float64(img.Height)},
		"data":      base64.StdEncoding.EncodeToString(img.Data),
	}
}

func (img *ImageData) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindImageData, v)
	img.Name = f.str("name")
	img.MimeType = f.str("mime_type")
	size, ok := protocol.AsArray(f.value("size"))
	if ok && len(size) == 2 {
		img.Width, _ = protocol.Number[int](size[0])
		img.Height, _ = protocol.Number[int](size[1])
	} else {
		f.fail("size")
	}
	data, err := base64.StdEncoding.DecodeString(f.str("data"))
	if err != nil {
		return errors.Wrapf(arena_errors.ErrMalformed, "ImageData.data: %v", err)
	}
	img.Data = data
	return f.err
}
