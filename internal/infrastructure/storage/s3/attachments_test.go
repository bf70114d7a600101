package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/core/ports"
)

type fakePutter struct {
	calls []*s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls = append(f.calls, in)
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestPut_UploadsPNG(t *testing.T) {
	fp := &fakePutter{}
	store := newStore(fp, "portal")

	key, err := store.Put(context.Background(), ports.Attachment{
		Filename:    "../id.png",
		ContentType: "image/png",
		Size:        int64(len(pngHeader)),
		Body:        bytes.NewReader(pngHeader),
	})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}
	if len(fp.calls) != 1 {
		t.Fatalf("expected one upload, got %d", len(fp.calls))
	}
	in := fp.calls[0]
	if aws.ToString(in.Bucket) != "portal" || aws.ToString(in.ContentType) != "image/png" {
		t.Fatalf("unexpected input: bucket=%s type=%s", aws.ToString(in.Bucket), aws.ToString(in.ContentType))
	}
	if in.Metadata["original-filename"] != "id.png" {
		t.Fatalf("filename not sanitised: %q", in.Metadata["original-filename"])
	}
	if !bytes.Equal(fp.body, pngHeader) {
		t.Fatalf("uploaded body mismatch")
	}
}

func TestPut_PDFDeclaredType(t *testing.T) {
	fp := &fakePutter{}
	store := newStore(fp, "portal")

	key, err := store.Put(context.Background(), ports.Attachment{
		Filename:    "proof.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.7\n..."),
	})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestPut_Rejections(t *testing.T) {
	cases := []struct {
		name string
		a    ports.Attachment
	}{
		{"declared too large", ports.Attachment{Size: MaxAttachmentSize + 1, Body: strings.NewReader("x")}},
		{"actual too large", ports.Attachment{Body: bytes.NewReader(make([]byte, MaxAttachmentSize+10))}},
		{"empty", ports.Attachment{Body: strings.NewReader("")}},
		{"html", ports.Attachment{ContentType: "image/png", Body: strings.NewReader("<html><body>hi</body></html>")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fp := &fakePutter{}
			_, err := newStore(fp, "portal").Put(context.Background(), tc.a)
			if !errors.Is(err, domain.ErrAttachmentRejected) {
				t.Fatalf("want ErrAttachmentRejected, got %v", err)
			}
			if len(fp.calls) != 0 {
				t.Fatalf("rejected attachment must not be uploaded")
			}
		})
	}
}

func TestPut_UploadError(t *testing.T) {
	fp := &fakePutter{err: errors.New("bucket gone")}
	_, err := newStore(fp, "portal").Put(context.Background(), ports.Attachment{
		ContentType: "image/png",
		Body:        bytes.NewReader(pngHeader),
	})
	if err == nil || errors.Is(err, domain.ErrAttachmentRejected) {
		t.Fatalf("expected upload error, got %v", err)
	}
}
