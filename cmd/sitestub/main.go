// sitestub serves a fake judgment listing with a handful of documents so the
// crawler can be exercised end to end without touching the real source:
//
//	SOURCE_BASE_URL=http://localhost:8089 \
//	SOURCE_LISTING_URL=http://localhost:8089/gdviewer/SUPCT \
//	casetrace crawl
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type judgment struct {
	slug  string
	title string
	body  string
}

var judgments = []judgment{
	{
		slug:  "2025_SGHC_101",
		title: "Lim Holdings Pte Ltd v Ong Construction Pte Ltd",
		body: `<p class="Judg-Hyphen">IN THE GENERAL DIVISION OF THE HIGH COURT</p>
<p>OF THE REPUBLIC OF SINGAPORE</p>
<p>[2025] SGHC 101</p>
<p>Originating Claim No 412 of 2024</p>
<p>Between</p>
<p>Lim Holdings Pte Ltd</p>
<p>&hellip; Claimant</p>
<p>And</p>
<p>Ong Construction Pte Ltd</p>
<p>&hellip; Defendant</p>
<p>GROUNDS OF DECISION</p>
<p>Tan Wei Ming J:</p>
<p>12 June 2025</p>
<p>1 This claim concerns alleged defects in a construction project.</p>
<p>2 The claimant relies on Chua Kim v Tan Ah Lek [2019] 2 SLR 216 at [44]
and on the Building Maintenance and Strata Management Act.</p>`,
	},
	{
		slug:  "2025_SGHC_102",
		title: "Public Prosecutor v Tan Beng Huat",
		body: `<p>IN THE GENERAL DIVISION OF THE HIGH COURT</p>
<p>OF THE REPUBLIC OF SINGAPORE</p>
<p>[2025] SGHC 102</p>
<p>Criminal Case No 9 of 2025</p>
<p>Public Prosecutor</p>
<p>v</p>
<p>Tan Beng Huat</p>
<p>GROUNDS OF DECISION</p>
<p>Before: Koh Siew Lin J</p>
<p>3 July 2025</p>
<p>1 The accused claimed trial to two charges under the Misuse of Drugs Act.</p>
<p>2 I considered Public Prosecutor v Wong [2021] SGCA 15 at [12].</p>`,
	},
	{
		slug:  "2025_SGCA_7",
		title: "Ng Mei Ling v Ng Swee Kiat",
		body: `<p>IN THE COURT OF APPEAL OF THE REPUBLIC OF SINGAPORE</p>
<p>[2025] SGCA 7</p>
<p>Civil Appeal No 3 of 2025</p>
<p>Between</p>
<p>Ng Mei Ling</p>
<p>&hellip; Appellant</p>
<p>And</p>
<p>Ng Swee Kiat</p>
<p>&hellip; Respondent</p>
<p>JUDGMENT</p>
<p>Sundaresh Menon CJ (delivering the judgment of the court):</p>
<p>21 August 2025</p>
<p>1 This appeal raises a question under the Evidence Act (1997 Rev Ed).</p>`,
	},
}

func listingPage(w http.ResponseWriter, page int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Supreme Court judgments</h1><ul>\n")
	// Two-page listing: page 1 carries the first two judgments, page 2 the rest.
	var items []judgment
	switch page {
	case 1:
		items = judgments[:2]
	case 2:
		items = judgments[2:]
	}
	for _, j := range items {
		fmt.Fprintf(w, `<li><a href="/gd/s/%s">%s</a></li>`+"\n", j.slug, j.title)
	}
	fmt.Fprint(w, "</ul></body></html>\n")
}

func main() {
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8089"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gdviewer/", func(w http.ResponseWriter, r *http.Request) {
		page := 1
		fmt.Sscanf(r.URL.Query().Get("CurrentPage"), "%d", &page)
		listingPage(w, page)
	})
	mux.HandleFunc("/gd/s/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimPrefix(r.URL.Path, "/gd/s/")
		for _, j := range judgments {
			if j.slug == slug {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprintf(w, "<html><head><title>%s</title></head><body>%s</body></html>\n", j.title, j.body)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "User-agent: *\nAllow: /\nCrawl-delay: 0\n")
	})

	log.Printf("sitestub listening on %s (%d judgments)", addr, len(judgments))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
