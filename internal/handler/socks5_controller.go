package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strings"

	"ikedadada/go-ptor/internal/domain/entity"
	repoif "ikedadada/go-ptor/internal/domain/repository"
	"ikedadada/go-ptor/internal/domain/value_object"
	"ikedadada/go-ptor/internal/usecase"
	useSvc "ikedadada/go-ptor/internal/usecase/service"
)

// exitStreamOpener is the slice of CircuitManager a SOCKS5Controller needs:
// hand it a target and get back a circuit+stream already past BEGIN,
// whether that meant reusing a clean circuit or waiting on a fresh build.
// Kept as a narrow interface here (rather than a concrete *usecase.CircuitManager
// field) so tests can substitute a stub without standing up a real manager.
type exitStreamOpener interface {
	OpenExitStreamToCtx(ctx context.Context, in usecase.OpenExitStreamInput) (usecase.OpenExitStreamOutput, error)
}

// SOCKS5Controller handles SOCKS5 proxy connections
type SOCKS5Controller struct {
	circuitRepo repoif.CircuitRepository
	cryptoSvc   useSvc.CryptoService
	crSvc       useSvc.CellReaderService
	mgr         exitStreamOpener
	closeUC     usecase.CloseStreamUseCase
	sendUC      usecase.SendDataUseCase
	endUC       usecase.HandleEndUseCase
	hops        int
}

// NewSOCKS5Controller creates a new SOCKS5Controller. mgr is the circuit
// registry/build-scheduler facade every real exit stream is opened
// through, so a connection benefits from clean-circuit reuse and the
// randomized active-circuit matching the registry does internally instead
// of building a fresh circuit per connection. Exit-relay selection lives
// in mgr now, not here.
func NewSOCKS5Controller(
	circuitRepo repoif.CircuitRepository,
	cryptoSvc useSvc.CryptoService,
	crSvc useSvc.CellReaderService,
	mgr exitStreamOpener,
	closeUC usecase.CloseStreamUseCase,
	sendUC usecase.SendDataUseCase,
	endUC usecase.HandleEndUseCase,
	hops int,
) *SOCKS5Controller {
	return &SOCKS5Controller{
		circuitRepo: circuitRepo,
		cryptoSvc:   cryptoSvc,
		crSvc:       crSvc,
		mgr:         mgr,
		closeUC:     closeUC,
		sendUC:      sendUC,
		endUC:       endUC,
		hops:        hops,
	}
}

// HandleConnection handles a SOCKS5 connection
func (c *SOCKS5Controller) HandleConnection(conn net.Conn) {
	defer conn.Close()

	var buf [262]byte
	if _, err := io.ReadFull(conn, buf[:2]); err != nil {
		log.Println("read SOCKS version:", err)
		return
	}
	n := int(buf[1])
	if _, err := io.ReadFull(conn, buf[:n]); err != nil {
		log.Println("read SOCKS methods:", err)
		return
	}
	conn.Write(value_object.SOCKS5HandshakeResp)

	if _, err := io.ReadFull(conn, buf[:4]); err != nil {
		log.Println("read SOCKS request:", err)
		return
	}
	if buf[1] != value_object.SOCKS5CmdConnect {
		log.Println("unsupported SOCKS command:", buf[1])
		return
	}
	var host string
	switch buf[3] {
	case value_object.SOCKS5AddrIPv4:
		if _, err := io.ReadFull(conn, buf[:4]); err != nil {
			log.Println("read IPv4 address:", err)
			return
		}
		host = net.IP(buf[:4]).String()
	case value_object.SOCKS5AddrDomain:
		if _, err := io.ReadFull(conn, buf[:1]); err != nil {
			log.Println("read hostname length:", err)
			return
		}
		l := int(buf[0])
		if _, err := io.ReadFull(conn, buf[:l]); err != nil {
			log.Println("read hostname:", err)
			return
		}
		host = string(buf[:l])
	default:
		log.Println("unsupported address type:", buf[3])
		return
	}
	if _, err := io.ReadFull(conn, buf[:2]); err != nil {
		log.Println("read port:", err)
		return
	}
	port := int(buf[0])<<8 | int(buf[1])

	addr, err := c.resolveAddress(host, port)
	if err != nil {
		log.Println("resolve address:", err)
		conn.Write(value_object.SOCKS5HostUnreachResp)
		return
	}

	log.Printf("opening exit stream hops=%d target=%s", c.hops, addr)
	out, err := c.mgr.OpenExitStreamToCtx(context.Background(), usecase.OpenExitStreamInput{
		Hops:   c.hops,
		Host:   host,
		Port:   uint16(port),
		Target: addr,
	})
	if err != nil {
		log.Println("open exit stream:", err)
		conn.Write(value_object.SOCKS5ErrorResp)
		return
	}
	circuitID := out.CircuitID
	sid := out.StreamID
	log.Printf("exit stream ready cid=%s sid=%d", circuitID, sid)

	cid, _ := value_object.CircuitIDFrom(circuitID)
	sm := useSvc.NewStreamManagerService()
	go c.recvLoop(cid, sm)

	sm.Add(uint16(sid), conn)
	defer sm.Remove(uint16(sid))

	conn.Write(value_object.SOCKS5SuccessResp)

	bufLocal := make([]byte, 4096)
	for {
		n, err := conn.Read(bufLocal)
		if n > 0 {
			log.Printf("sending DATA command cid=%s sid=%d bytes=%d", circuitID, sid, n)
			if _, err2 := c.sendUC.Handle(usecase.SendDataInput{CircuitID: circuitID, StreamID: sid, Data: bufLocal[:n]}); err2 != nil {
				log.Println("send data:", err2)
				break
			}
		}
		if err != nil {
			if err == io.EOF {
				_, _ = c.endUC.Handle(usecase.HandleEndInput{CircuitID: circuitID, StreamID: sid})
			}
			break
		}
	}

	if _, err := c.closeUC.Handle(usecase.CloseStreamInput{CircuitID: circuitID, StreamID: sid}); err != nil {
		log.Println("close stream:", err)
	}
}

// ResolveAddress returns the dial address for the given host and port.
func (c *SOCKS5Controller) ResolveAddress(host string, port int) (string, error) {
	return c.resolveAddress(host, port)
}

// resolveAddress returns the dial address for the given host and port,
// bracketing the host if it is a literal IPv6 address.
func (c *SOCKS5Controller) resolveAddress(host string, port int) (string, error) {
	hostLower := strings.ToLower(host)
	if ip := net.ParseIP(hostLower); ip != nil && ip.To4() == nil {
		return fmt.Sprintf("[%s]:%d", hostLower, port), nil
	}
	return fmt.Sprintf("%s:%d", hostLower, port), nil
}

// recvLoop handles incoming data from the circuit
func (c *SOCKS5Controller) recvLoop(cid value_object.CircuitID, sm useSvc.StreamManagerService) {
	cir, err := c.circuitRepo.Find(cid)
	if err != nil {
		log.Println("find circuit:", err)
		return
	}
	conn := cir.Conn(0)
	if conn == nil {
		log.Println("no connection for circuit")
		return
	}
	for {
		_, cell, err := c.crSvc.ReadCell(conn)
		if err != nil {
			if err != io.EOF {
				log.Println("read cell:", err)
			}
			sm.CloseAll()
			return
		}
		switch cell.Cmd {
		case value_object.CmdData:
			dp, err := value_object.DecodeDataPayload(cell.Payload)
			if err != nil {
				continue
			}
			// Response data uses multi-layer encryption - decrypt layer by layer
			// Start from outermost layer (first hop) to innermost (exit hop)
			data := dp.Data
			hopCount := len(cir.Hops())

			log.Printf("response decrypt multi-layer hops=%d dataLen=%d", hopCount, len(data))

			// Decrypt each layer in reverse circuit order (first hop to exit hop)
			for hop := 0; hop < hopCount; hop++ {
				key := cir.HopKey(hop)
				nonce := cir.HopUpstreamDataNonce(hop)

				log.Printf("response decrypt hop=%d nonce=%x key=%x", hop, nonce, key)
				decrypted, err := c.cryptoSvc.AESOpen(key, nonce, data)
				if err != nil {
					log.Printf("response decrypt failed hop=%d: %v", hop, err)
					break
				}
				data = decrypted
				log.Printf("response decrypt success hop=%d len=%d", hop, len(data))
			}

			if conn, ok := sm.Get(dp.StreamID); ok {
				conn.Write(data)
			}
		case value_object.CmdSendme:
			if dp, err := value_object.DecodeDataPayload(cell.Payload); err == nil {
				if sid, err := value_object.StreamIDFrom(dp.StreamID); err == nil {
					if w := cir.StreamWindow(sid); w != nil {
						if err := w.Release(entity.SendmeIncrement); err != nil {
							log.Printf("sendme rejected stream=%d: %v", dp.StreamID, err)
							return
						}
					}
					if cw := cir.Window(); cw != nil {
						if err := cw.Release(entity.SendmeIncrement); err != nil {
							log.Printf("sendme rejected on circuit: %v", err)
							return
						}
					}
				}
			}
		case value_object.CmdEnd:
			sid := uint16(0)
			if len(cell.Payload) > 0 {
				if p, err := value_object.DecodeDataPayload(cell.Payload); err == nil {
					sid = p.StreamID
				}
			}
			if sid == 0 {
				sm.CloseAll()
				return
			}
			sm.Remove(sid)
		case value_object.CmdDestroy:
			sm.CloseAll()
			return
		}
	}
}
