package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/casetrace/casetrace/internal/fetch"
	"github.com/casetrace/casetrace/internal/listing"
)

func main() {
	base := os.Getenv("SOURCE_BASE_URL")
	if base == "" {
		base = "https://www.elitigation.sg"
	}
	listingURL := os.Getenv("SOURCE_LISTING_URL")
	if listingURL == "" {
		listingURL = base + "/gdviewer/SUPCT"
	}
	page := 1
	if len(os.Args) > 1 {
		fmt.Sscanf(os.Args[1], "%d", &page)
	}

	client := &fetch.Client{
		UserAgent:         "debuglisting/1.0",
		MaxAttempts:       2,
		PerRequestTimeout: 20 * time.Second,
		MinDelay:          200 * time.Millisecond,
		MaxConcurrent:     1,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	pageURL, err := listing.BuildURL(listingURL, page)
	if err != nil {
		fmt.Println("err:", err)
		os.Exit(1)
	}
	body, _, err := client.Get(ctx, pageURL)
	fmt.Println("url:", pageURL)
	fmt.Println("err:", err)
	if err != nil {
		os.Exit(1)
	}
	urls := listing.Parse(base, body)
	for i, u := range urls {
		fmt.Printf("%d. %s\n", i+1, u)
	}
}
