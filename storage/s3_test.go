package storage

import (
	"testing"

	"listing_scrooper/config"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{
			name: "aws",
			cfg:  config.S3Config{Bucket: "listing-photos", Region: "us-east-1"},
			want: "https://listing-photos.s3.us-east-1.amazonaws.com/photos/ab/abcd.jpg",
		},
		{
			name: "spaces",
			cfg:  config.S3Config{Bucket: "listing-photos", Region: "nyc3", Endpoint: "https://nyc3.digitaloceanspaces.com"},
			want: "https://listing-photos.nyc3.digitaloceanspaces.com/photos/ab/abcd.jpg",
		},
		{
			name: "path style",
			cfg:  config.S3Config{Bucket: "listing-photos", Endpoint: "http://localhost:9000/"},
			want: "https://localhost:9000/listing-photos/photos/ab/abcd.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PublicURL(tt.cfg, "photos/ab/abcd.jpg"); got != tt.want {
				t.Errorf("PublicURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
