package blobstore_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"media-relay/domain/transfer"
	"media-relay/infrastructure/blobstore"

	"github.com/matryer/is"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

func TestSink_Write(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	sink := blobstore.NewSink(bucket, blobstore.WithBaseURL("mem://test"))
	defer sink.Close()

	loc, err := sink.Write(ctx, "audio/sermon 01.mp3", strings.NewReader("ID3-bytes"), "audio/mpeg", false)
	is.NoErr(err)
	is.Equal(loc.Path, "audio/sermon 01.mp3")
	is.Equal(loc.URL, "mem://test/audio/sermon%2001.mp3")

	data, err := bucket.ReadAll(ctx, "audio/sermon 01.mp3")
	is.NoErr(err)
	is.Equal(string(data), "ID3-bytes")

	attrs, err := bucket.Attributes(ctx, "audio/sermon 01.mp3")
	is.NoErr(err)
	is.Equal(attrs.ContentType, "audio/mpeg")
}

func TestSink_WriteOverwrites(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	sink := blobstore.NewSink(bucket)
	defer sink.Close()

	_, err := sink.Write(ctx, "audio/a.mp3", strings.NewReader("first"), "audio/mpeg", false)
	is.NoErr(err)
	_, err = sink.Write(ctx, "audio/a.mp3", strings.NewReader("second"), "audio/mpeg", false)
	is.NoErr(err)

	data, err := bucket.ReadAll(ctx, "audio/a.mp3")
	is.NoErr(err)
	is.Equal(string(data), "second")
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("disk read failed")
}

func TestSink_WriteFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	sink := blobstore.NewSink(bucket)
	defer sink.Close()

	_, err := sink.Write(ctx, "audio/a.mp3", io.MultiReader(strings.NewReader("partial"), brokenReader{}), "audio/mpeg", false)
	is.True(err != nil)
	is.Equal(transfer.KindOf(err, ""), transfer.KindUpstreamWrite)

	exists, err := bucket.Exists(ctx, "audio/a.mp3")
	is.NoErr(err)
	is.True(!exists) // aborted upload leaves no object
}

func TestSink_PublicURL(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	sink := blobstore.NewSink(memblob.OpenBucket(nil),
		blobstore.WithBaseURL("gs://audios.appspot.com"),
		blobstore.WithPublicBaseURL("https://storage.googleapis.com/audios.appspot.com/"),
	)
	defer sink.Close()

	loc, err := sink.Write(ctx, "audio/a&b.mp3", strings.NewReader("x"), "audio/mpeg", true)
	is.NoErr(err)
	is.Equal(loc.URL, "https://storage.googleapis.com/audios.appspot.com/audio/a&b.mp3")

	loc, err = sink.Write(ctx, "audio/a.mp3", strings.NewReader("x"), "audio/mpeg", false)
	is.NoErr(err)
	is.Equal(loc.URL, "gs://audios.appspot.com/audio/a.mp3")
}

func TestOpen_FileBucket(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	sink, err := blobstore.Open(ctx, "file://"+dir)
	is.NoErr(err)
	defer sink.Close()

	loc, err := sink.Write(ctx, "audio/a.mp3", strings.NewReader("hello"), "audio/mpeg", true)
	is.NoErr(err)
	is.Equal(loc.URL, "file://"+dir+"/audio/a.mp3")

	b, err := blob.OpenBucket(ctx, "file://"+dir)
	is.NoErr(err)
	defer b.Close()
	data, err := b.ReadAll(ctx, "audio/a.mp3")
	is.NoErr(err)
	is.Equal(string(data), "hello")
}

func TestOpen_InvalidURL(t *testing.T) {
	is := is.New(t)
	_, err := blobstore.Open(context.Background(), "nosuchscheme://bucket")
	is.True(err != nil)
}
