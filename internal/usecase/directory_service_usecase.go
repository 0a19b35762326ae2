package usecase

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"ikedadada/go-ptor/internal/domain/entity"
)

// DirectoryServiceUseCase handles fetching directory information from directory servers
type DirectoryServiceUseCase interface {
	FetchDirectory(input DirectoryServiceInput) (DirectoryServiceOutput, error)
	FetchRelays(input DirectoryServiceInput) (RelayServiceOutput, error)
}

type DirectoryServiceInput struct {
	BaseURL string
}

type DirectoryServiceOutput struct {
	Directory entity.Directory
}

type RelayServiceOutput struct {
	Relays map[string]entity.RelayInfo
}

type directoryServiceUseCaseImpl struct {
	httpClient *http.Client
}

func NewDirectoryServiceUseCase() DirectoryServiceUseCase {
	return &directoryServiceUseCaseImpl{
		httpClient: &http.Client{},
	}
}

func (uc *directoryServiceUseCaseImpl) FetchDirectory(input DirectoryServiceInput) (DirectoryServiceOutput, error) {
	relayOut, err := uc.FetchRelays(input)
	if err != nil {
		return DirectoryServiceOutput{}, fmt.Errorf("fetch relays failed: %w", err)
	}

	directory := entity.Directory{
		Relays: relayOut.Relays,
	}

	return DirectoryServiceOutput{Directory: directory}, nil
}

func (uc *directoryServiceUseCaseImpl) FetchRelays(input DirectoryServiceInput) (RelayServiceOutput, error) {
	url := strings.TrimRight(input.BaseURL, "/") + "/relays.json"
	log.Printf("request GET %s", url)

	res, err := uc.httpClient.Get(url)
	if err != nil {
		return RelayServiceOutput{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer res.Body.Close()

	log.Printf("response GET %s status=%s", url, res.Status)

	if res.StatusCode != http.StatusOK {
		return RelayServiceOutput{}, fmt.Errorf("unexpected status: %s", res.Status)
	}

	var d entity.Directory
	if err := json.NewDecoder(res.Body).Decode(&d); err != nil {
		return RelayServiceOutput{}, fmt.Errorf("decode JSON failed: %w", err)
	}

	return RelayServiceOutput{Relays: d.Relays}, nil
}
