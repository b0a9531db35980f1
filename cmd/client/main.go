package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"time"

	galleryv1 "github.com/PaulBabatuyi/CarLot-gRPC/api/gallery/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const chunkSize = 64 * 1024 // 64KB chunks

type GalleryClient struct {
	conn   *grpc.ClientConn
	client galleryv1.GalleryServiceClient
}

func NewGalleryClient(addr string) (*GalleryClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &GalleryClient{
		conn:   conn,
		client: galleryv1.NewGalleryServiceClient(conn),
	}, nil
}

func (gc *GalleryClient) Close() error {
	return gc.conn.Close()
}

// UploadImages streams every file in order and commits them as one batch.
func (gc *GalleryClient) UploadImages(ctx context.Context, listingID string, paths []string) (*galleryv1.UploadImagesResponse, error) {
	stream, err := gc.client.UploadImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	err = stream.Send(&galleryv1.UploadImagesRequest{Listing: &galleryv1.UploadTarget{ListingID: listingID}})
	if err != nil {
		return nil, closeWithError(stream, fmt.Errorf("failed to send listing: %w", err))
	}

	for _, path := range paths {
		if err := sendFile(stream, path); err != nil {
			return nil, closeWithError(stream, err)
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	return resp, nil
}

// closeWithError prefers the server's status over a local io.EOF from Send.
func closeWithError(stream galleryv1.GalleryService_UploadImagesClient, sendErr error) error {
	if errors.Is(sendErr, io.EOF) {
		if _, err := stream.CloseAndRecv(); err != nil {
			return err
		}
	}
	return sendErr
}

func sendFile(stream galleryv1.GalleryService_UploadImagesClient, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	err = stream.Send(&galleryv1.UploadImagesRequest{File: &galleryv1.FileHeader{
		Filename:    info.Name(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Size:        info.Size(),
	}})
	if err != nil {
		return fmt.Errorf("failed to send header: %w", err)
	}

	buffer := make([]byte, chunkSize)
	totalSent := int64(0)
	for {
		n, err := file.Read(buffer)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		if err := stream.Send(&galleryv1.UploadImagesRequest{Chunk: buffer[:n]}); err != nil {
			return fmt.Errorf("failed to send chunk: %w", err)
		}

		totalSent += int64(n)
		if info.Size() > 0 {
			fmt.Printf("\rUploading %s: %.2f%%", info.Name(), float64(totalSent)/float64(info.Size())*100)
		}
	}
	fmt.Println()
	return nil
}

func (gc *GalleryClient) ListImages(ctx context.Context, listingID string) (*galleryv1.ListImagesResponse, error) {
	resp, err := gc.client.ListImages(ctx, &galleryv1.ListImagesRequest{ListingID: listingID})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return resp, nil
}

func (gc *GalleryClient) GetImage(ctx context.Context, imageID string) (*galleryv1.ImageEntry, error) {
	resp, err := gc.client.GetImage(ctx, &galleryv1.GetImageRequest{ImageID: imageID})
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return resp.Image, nil
}

func (gc *GalleryClient) DeleteImage(ctx context.Context, imageID string) (*galleryv1.DeleteImageResponse, error) {
	resp, err := gc.client.DeleteImage(ctx, &galleryv1.DeleteImageRequest{ImageID: imageID})
	if err != nil {
		return nil, fmt.Errorf("failed to delete image: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("delete failed: %s", resp.Message)
	}
	return resp, nil
}

func printImage(i int, img *galleryv1.ImageEntry) {
	fmt.Printf("  %d. [%d] %s\n     %s\n", i+1, img.Position, img.ImageID, img.URL)
	if img.ThumbnailURL != "" {
		fmt.Printf("     thumb: %s\n", img.ThumbnailURL)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: client [flags] <command> [command flags]

commands:
  upload -listing ID <file>...   upload images to a listing
  list -listing ID               list a listing's gallery
  get -image ID                  show one image
  delete -image ID               delete an image

flags:
`)
	flag.PrintDefaults()
}

// parseCommand parses the flags that follow a subcommand and requires id.
func parseCommand(name, idFlag string, args []string) (string, []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.String(idFlag, "", idFlag+" id")
	fs.Parse(args)
	if *id == "" {
		fmt.Fprintf(os.Stderr, "%s: -%s is required\n", name, idFlag)
		fs.Usage()
		os.Exit(2)
	}
	return *id, fs.Args()
}

func main() {
	addr := flag.String("addr", "localhost:50051", "server address")
	apiKey := flag.String("api-key", os.Getenv("CARLOT_API_KEY"), "api key (or CARLOT_API_KEY)")
	token := flag.String("token", os.Getenv("CARLOT_TOKEN"), "OIDC bearer token (or CARLOT_TOKEN)")
	timeout := flag.Duration("timeout", 5*time.Minute, "request timeout")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	client, err := NewGalleryClient(*addr)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	switch {
	case *token != "":
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+*token)
	case *apiKey != "":
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", *apiKey)
	}

	switch cmd := args[0]; cmd {
	case "upload":
		listingID, files := parseCommand(cmd, "listing", args[1:])
		if len(files) == 0 {
			log.Fatal("upload: no files given")
		}
		resp, err := client.UploadImages(ctx, listingID, files)
		if err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		fmt.Printf("✓ Uploaded %d images to %s\n", len(resp.Images), resp.ListingID)
		for i, img := range resp.Images {
			printImage(i, img)
		}

	case "list":
		listingID, _ := parseCommand(cmd, "listing", args[1:])
		resp, err := client.ListImages(ctx, listingID)
		if err != nil {
			log.Fatalf("List failed: %v", err)
		}
		fmt.Printf("✓ Found %d images:\n", len(resp.Images))
		for i, img := range resp.Images {
			printImage(i, img)
		}

	case "get":
		imageID, _ := parseCommand(cmd, "image", args[1:])
		img, err := client.GetImage(ctx, imageID)
		if err != nil {
			log.Fatalf("Get failed: %v", err)
		}
		printImage(0, img)
		fmt.Printf("     uploaded: %s\n", img.CreatedAt.Format(time.RFC3339))

	case "delete":
		imageID, _ := parseCommand(cmd, "image", args[1:])
		resp, err := client.DeleteImage(ctx, imageID)
		if err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Println("✓ Image deleted")
		if resp.Warning != "" {
			fmt.Printf("  warning: %s\n", resp.Warning)
		}

	default:
		usage()
		os.Exit(2)
	}
}
