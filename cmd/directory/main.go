package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
)

// relayDTO is the directory's published view of a relay.
type relayDTO struct {
	ID         string   `json:"id"`
	Endpoint   string   `json:"endpoint"`
	PubKey     string   `json:"pubkey"`
	X25519Pub  string   `json:"x25519_pubkey,omitempty"`
	ExitPolicy string   `json:"exit_policy,omitempty"`
	Family     []string `json:"family,omitempty"`
}

// directoryDoc is the wire shape the client's directory_service_usecase.go
// decodes: a map keyed by relay id, matching entity.Directory's JSON tag.
type directoryDoc struct {
	Relays map[string]relayDTO `json:"relays"`
}

func loadDirectory(path string) (directoryDoc, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return directoryDoc{}, err
	}
	var asMap directoryDoc
	if err := json.Unmarshal(b, &asMap); err == nil && asMap.Relays != nil {
		return asMap, nil
	}
	// Fall back to the flat-array authoring format (easier to hand-edit),
	// keyed by each entry's id field.
	var asList []relayDTO
	if err := json.Unmarshal(b, &asList); err != nil {
		return directoryDoc{}, err
	}
	relays := make(map[string]relayDTO, len(asList))
	for _, r := range asList {
		relays[r.ID] = r
	}
	return directoryDoc{Relays: relays}, nil
}

func newMux(d directoryDoc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/relays.json", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("request %s %s", r.Method, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(d)
		log.Printf("response %s %s %d", r.Method, r.URL.Path, http.StatusOK)
	})
	return mux
}

func main() {
	listen := flag.String("listen", ":8081", "listen address")
	flag.Parse()

	doc, err := loadDirectory("relays.json")
	if err != nil {
		log.Fatal(err)
	}

	log.Println("directory server listening on", *listen)
	log.Fatal(http.ListenAndServe(*listen, newMux(doc)))
}
