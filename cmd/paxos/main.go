// Command paxos launches one agent of the ensemble:
//
//	paxos [flags] <config> <role> <id>
//
// where role is one of client, proposer, acceptor, learner and id is a
// small integer unique within the role. The config file holds one
// "role ip port" line per role naming that role's multicast group.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/senutpal/multipaxos/internal/config"
	"github.com/senutpal/multipaxos/internal/node"
	"github.com/senutpal/multipaxos/internal/paxos"
	"github.com/senutpal/multipaxos/internal/storage"
	"github.com/senutpal/multipaxos/internal/transport"
)

func main() {
	acceptors := flag.Int("acceptors", 3, "number of acceptors in the ensemble")
	proposers := flag.Int("proposers", 2, "number of proposers in the ensemble")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 3 {
		usage()
		os.Exit(2)
	}

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	role := flag.Arg(1)
	id, err := strconv.Atoi(flag.Arg(2))
	if err != nil || id < 0 {
		logger.Fatalf("invalid process id %q", flag.Arg(2))
	}

	network, err := config.Load(flag.Arg(0))
	if err != nil {
		logger.Fatal(err)
	}

	group, ok := map[string]string{
		"client":   string(paxos.GroupClients),
		"proposer": string(paxos.GroupProposers),
		"acceptor": string(paxos.GroupAcceptors),
		"learner":  string(paxos.GroupLearners),
	}[role]
	if !ok {
		logger.Fatalf("unknown role %q (want client, proposer, acceptor or learner)", role)
	}

	tr, err := transport.NewMulticast(group, network.Groups())
	if err != nil {
		logger.Fatal(err)
	}

	var client *paxos.Client
	var handler paxos.Handler
	switch role {
	case "client":
		client = paxos.NewClient(id, logger)
		handler = client
	case "proposer":
		handler = paxos.NewProposer(id, *proposers, *acceptors, logger)
	case "acceptor":
		handler = paxos.NewAcceptor(id, storage.NewMemoryStore(), logger)
	case "learner":
		handler = paxos.NewLearner(id, logger)
	}

	n := node.New(fmt.Sprintf("%s-%d", role, id), handler, tr, logger)
	if err := n.Start(); err != nil {
		logger.Fatal(err)
	}

	if client != nil {
		go submitLoop(client, n, logger)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := n.Stop(); err != nil {
		logger.Fatal(err)
	}
}

// submitLoop reads one value per line from stdin and submits each to
// the proposers.
func submitLoop(client *paxos.Client, n *node.Node, logger *logrus.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		v := scanner.Text()
		if v == "" {
			continue
		}
		if err := n.Send(client.Submit(v)); err != nil {
			logger.WithError(err).Error("submit failed")
			continue
		}
		fmt.Printf("Submitted value: %s\n", v)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <config> <role> <id>\n", os.Args[0])
	flag.PrintDefaults()
}
