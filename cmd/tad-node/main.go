// tad-node runs a single TAD chat node on the local network: it
// advertises itself over mDNS, accepts and initiates connections to
// other nodes it discovers, and joins the gossip mesh.
//
// Usage:
//
//	tad-node [options]
//
// Options:
//
//	-data     Directory for identity keys and the message database (default: ./tad-data)
//	-listen   Address to accept inbound connections on (default: ":8765")
//	-port     mDNS-advertised port, should match -listen (default: 8765)
//	-name     Display name hint shown to other nodes (default: keep the stored name)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/logging"

	"github.com/tad-chat/tad/internal/message"
	"github.com/tad-chat/tad/internal/model"
	"github.com/tad-chat/tad/internal/orchestrator"
)

func main() {
	dataDir := flag.String("data", "./tad-data", "directory for identity keys and the message database")
	listenAddr := flag.String("listen", ":8765", "address to accept inbound connections on")
	port := flag.Int("port", 8765, "mDNS-advertised port")
	displayName := flag.String("name", "", "display name hint shown to other nodes")
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o700); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	loggerFactory := logging.NewDefaultLoggerFactory()

	node, err := orchestrator.New(orchestrator.Config{
		DataDir:       *dataDir,
		ListenAddr:    *listenAddr,
		DiscoveryPort: *port,
		Callbacks:     callbacks(),
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		log.Fatalf("create node: %v", err)
	}

	if *displayName != "" {
		if err := node.Identity().SetDisplayName(*displayName); err != nil {
			log.Printf("set display name: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Start(); err != nil {
		log.Fatalf("start node: %v", err)
	}
	printOnboardingInfo(node)

	<-ctx.Done()

	log.Println("shutting down...")
	if err := node.Stop(); err != nil {
		log.Fatalf("stop node: %v", err)
	}
}

func printOnboardingInfo(node *orchestrator.Node) {
	id := node.Identity()
	fmt.Println("========================================")
	fmt.Println("              TAD Node Ready")
	fmt.Println("========================================")
	fmt.Printf("Node ID:      %s\n", id.NodeID())
	fmt.Printf("Display name: %s\n", id.DisplayName())
	fmt.Println("========================================")
}

func callbacks() orchestrator.Callbacks {
	return orchestrator.Callbacks{
		OnMessage: func(m *message.Message) {
			fmt.Printf("[%s] %s: %s\n", m.Channel, m.SenderID, m.Content)
		},
		OnChannelJoined: func(channel string) {
			log.Printf("joined channel %q", channel)
		},
		OnChannelLeft: func(channel string) {
			log.Printf("left channel %q", channel)
		},
		OnPeerFound: func(nodeID, address string) {
			log.Printf("discovered peer %s at %s", nodeID, address)
		},
		OnPeerLost: func(nodeID string) {
			log.Printf("lost peer %s", nodeID)
		},
		OnPeerStatusChanged: func(nodeID string, status model.PeerStatus) {
			log.Printf("peer %s is now %s", nodeID, status)
		},
		OnAppError: func(code message.ErrorCode, detail string) {
			log.Printf("protocol error %s: %s", code, detail)
		},
		OnShutdown: func(err error) {
			if err != nil {
				log.Printf("shutdown: %v", err)
			}
		},
	}
}
