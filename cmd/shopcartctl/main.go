package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/discovery"
	"github.com/example/shopcart/pkg/grpc"
	"github.com/example/shopcart/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const usage = `usage: shopcartctl [-config path] <command> [args]

commands:
  cart                           show the cart
  add <productId>                add one unit of a product
  remove <productId>             remove a product from the cart
  customer <name> <phone> <addr> set the checkout form
  order                          place the order
  whatsapp                       print the manual dispatch link
`

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Log.OutputPaths = []string{"stderr"}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var sd *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, using configured address", zap.Error(err))
		} else {
			defer sd.Close()
		}
	}

	conn, err := grpc.Dial(sd, cfg.Server.Name, cfg.Server.Addr(), log)
	if err != nil {
		log.Fatal("Failed to connect", zap.Error(err))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, grpc.NewCartClient(conn), flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *grpc.CartClient, args []string) error {
	cmd, args := args[0], args[1:]

	var (
		out *structpb.Struct
		err error
	)
	switch {
	case cmd == "cart" && len(args) == 0:
		out, err = client.GetCart(ctx)
	case cmd == "add" && len(args) == 1:
		out, err = client.AddItem(ctx, args[0])
	case cmd == "remove" && len(args) == 1:
		out, err = client.RemoveItem(ctx, args[0])
	case cmd == "customer" && len(args) == 3:
		out, err = client.SetCustomer(ctx, args[0], args[1], args[2])
	case cmd == "order" && len(args) == 0:
		id, err := client.PlaceOrder(ctx)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	case cmd == "whatsapp" && len(args) == 0:
		link, err := client.WhatsAppLink(ctx)
		if err != nil {
			return err
		}
		fmt.Println(link)
		return nil
	default:
		return fmt.Errorf("unknown command or wrong arguments: %s\n\n%s", cmd, usage)
	}
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
