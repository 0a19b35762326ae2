package main

import (
	"flag"
	"log"
	"net"
	"strconv"

	"ikedadada/go-ptor/internal/domain/entity"
	"ikedadada/go-ptor/internal/domain/value_object"
	"ikedadada/go-ptor/internal/handler"
	infraRepo "ikedadada/go-ptor/internal/infrastructure/repository"
	infraSvc "ikedadada/go-ptor/internal/infrastructure/service"
	"ikedadada/go-ptor/internal/usecase"
	useSvc "ikedadada/go-ptor/internal/usecase/service"
)

// loadRelays fetches the relay directory and populates rr with every entry
// that parses cleanly, logging and skipping the rest.
func loadRelays(rr repoRelaySaver, dirURL string) error {
	duc := usecase.NewDirectoryServiceUseCase()
	out, err := duc.FetchRelays(usecase.DirectoryServiceInput{BaseURL: dirURL})
	if err != nil {
		return err
	}
	for id, info := range out.Relays {
		rid, err := value_object.NewRelayID(id)
		if err != nil {
			log.Printf("invalid relay id %q: %v", id, err)
			continue
		}
		host, portStr, err := net.SplitHostPort(info.Endpoint)
		if err != nil {
			log.Printf("parse endpoint %q: %v", info.Endpoint, err)
			continue
		}
		p, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("parse port %q: %v", portStr, err)
			continue
		}
		ep, err := value_object.NewEndpoint(host, uint16(p))
		if err != nil {
			log.Printf("new endpoint: %v", err)
			continue
		}
		pk, err := value_object.RSAPubKeyFromPEM([]byte(info.PubKey))
		if err != nil {
			log.Printf("parse pubkey for %s: %v", id, err)
			continue
		}
		rel := entity.NewRelay(rid, ep, pk)
		rel.SetOnline()
		if info.ExitPolicy != "" {
			ep, err := value_object.ParseExitPolicy(info.ExitPolicy)
			if err != nil {
				log.Printf("parse exit policy for %s: %v", id, err)
			} else {
				rel.SetExitPolicy(ep)
			}
		}
		for _, fam := range info.Family {
			if famID, err := value_object.NewRelayID(fam); err == nil {
				rel.AddFamilyMember(famID)
			}
		}
		if err := rr.Save(rel); err != nil {
			log.Printf("save relay %s: %v", id, err)
		}
	}
	return nil
}

type repoRelaySaver interface {
	Save(*entity.Relay) error
}

func main() {
	hops := flag.Int("hops", 3, "number of hops")
	socks := flag.String("socks", ":9050", "SOCKS5 listen address")
	dirURL := flag.String("dir", "", "base directory URL")
	flag.Parse()

	if *dirURL == "" {
		log.Fatal("base directory URL required")
	}

	relayRepository := infraRepo.NewRelayRepo()
	circuitRepository := infraRepo.NewCircuitRepo()

	if err := loadRelays(relayRepository, *dirURL); err != nil {
		log.Fatal(err)
	}

	dialer := infraSvc.NewTCPDialer()
	cryptoSvc := useSvc.NewCryptoService()
	factory := useSvc.TCPMessagingServiceFactory{}

	builder := useSvc.NewCircuitBuildService(relayRepository, circuitRepository, dialer, cryptoSvc)
	buildUC := usecase.NewBuildCircuitUseCase(builder)
	openUC := usecase.NewOpenStreamUsecase(circuitRepository)
	closeUC := usecase.NewCloseStreamUsecase(circuitRepository, factory)
	sendUC := usecase.NewSendDataUsecase(circuitRepository, factory, cryptoSvc)
	endUC := usecase.NewHandleEndUsecase(circuitRepository)
	crSvc := useSvc.NewCellReaderService()

	mgr := usecase.NewCircuitManager(relayRepository, circuitRepository, buildUC, openUC, sendUC, *hops)
	go func() {
		for e := range mgr.Events() {
			log.Printf("circuit manager event: %v", e)
		}
	}()
	go func() {
		if err := mgr.EnsureSpare(usecase.CleanCircuitFloor); err != nil {
			log.Printf("pre-warm spare circuits: %v", err)
		}
		mgr.StartBuildingCircuits()
	}()

	controller := handler.NewSOCKS5Controller(
		circuitRepository,
		cryptoSvc,
		crSvc,
		mgr,
		closeUC,
		sendUC,
		endUC,
		*hops,
	)

	ln, err := net.Listen("tcp", *socks)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("SOCKS5 proxy listening on", ln.Addr())
	for {
		c, err := ln.Accept()
		if err != nil {
			log.Println("accept error:", err)
			continue
		}
		log.Printf("request connection from %s", c.RemoteAddr())
		go func(conn net.Conn) {
			controller.HandleConnection(conn)
			log.Printf("response connection closed %s", conn.RemoteAddr())
		}(c)
	}
}
