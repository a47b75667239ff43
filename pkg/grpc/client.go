package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/shopcart/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// CartClient calls shopcart.v1.CartService on an existing connection.
type CartClient struct {
	cc grpc.ClientConnInterface
}

func NewCartClient(cc grpc.ClientConnInterface) *CartClient {
	return &CartClient{cc: cc}
}

// Dial resolves the cart service through discovery when it is available and
// falls back to target otherwise. opts are appended to the default options.
func Dial(disc *discovery.ServiceDiscovery, serviceName, target string, logger *zap.Logger, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if disc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		instances, err := disc.Discover(ctx, serviceName)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr()
			logger.Info("Discovered cart service", zap.String("address", target))
		} else {
			logger.Info("Using default address for cart service", zap.String("address", target))
		}
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cart service: %w", err)
	}
	return conn, nil
}

func (c *CartClient) call(ctx context.Context, method string, in map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartClient) GetCart(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "GetCart", nil)
}

func (c *CartClient) AddItem(ctx context.Context, productID string) (*structpb.Struct, error) {
	return c.call(ctx, "AddItem", map[string]interface{}{"productId": productID})
}

func (c *CartClient) RemoveItem(ctx context.Context, productID string) (*structpb.Struct, error) {
	return c.call(ctx, "RemoveItem", map[string]interface{}{"productId": productID})
}

func (c *CartClient) SetCustomer(ctx context.Context, name, phone, address string) (*structpb.Struct, error) {
	return c.call(ctx, "SetCustomer", map[string]interface{}{
		"name":    name,
		"phone":   phone,
		"address": address,
	})
}

// PlaceOrder returns the id of the stored order.
func (c *CartClient) PlaceOrder(ctx context.Context) (string, error) {
	out, err := c.call(ctx, "PlaceOrder", nil)
	if err != nil {
		return "", err
	}
	return stringField(out, "orderId"), nil
}

func (c *CartClient) WhatsAppLink(ctx context.Context) (string, error) {
	out, err := c.call(ctx, "WhatsAppLink", nil)
	if err != nil {
		return "", err
	}
	return stringField(out, "url"), nil
}
