package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/example/shopcart/pkg/cart"
	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "shopcart.v1.CartService"

// CartServiceServer is the server API for shopcart.v1.CartService.
// Requests and replies are free-form structs.
type CartServiceServer interface {
	GetCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetCustomer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhatsAppLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(CartServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CartServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CartServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var CartServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetCart", CartServiceServer.GetCart),
		unaryHandler("AddItem", CartServiceServer.AddItem),
		unaryHandler("RemoveItem", CartServiceServer.RemoveItem),
		unaryHandler("SetCustomer", CartServiceServer.SetCustomer),
		unaryHandler("PlaceOrder", CartServiceServer.PlaceOrder),
		unaryHandler("WhatsAppLink", CartServiceServer.WhatsAppLink),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shopcart/v1/cart.proto",
}

type CartServer struct {
	controller *cart.Controller
	logger     *zap.Logger
	config     *config.ServerConfig
	server     *grpc.Server
	health     *health.Server
}

func NewCartServer(cfg *config.ServerConfig, controller *cart.Controller, logger *zap.Logger) *CartServer {
	s := &CartServer{
		controller: controller,
		logger:     logger.Named("grpc"),
		config:     cfg,
		health:     health.NewServer(),
	}

	s.server = grpc.NewServer(grpc.UnaryInterceptor(s.logInterceptor))
	s.server.RegisterService(&CartServiceDesc, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)

	return s
}

func (s *CartServer) Start() error {
	lis, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Stop is called.
func (s *CartServer) Serve(lis net.Listener) error {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("Cart service started", zap.String("address", lis.Addr().String()))

	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *CartServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
	s.logger.Info("Cart service stopped")
}

func (s *CartServer) logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("RPC failed",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Error(err))
	} else {
		s.logger.Debug("RPC handled", zap.String("method", info.FullMethod))
	}
	return resp, err
}

func (s *CartServer) GetCart(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return cartStruct(s.controller.Snapshot())
}

func (s *CartServer) AddItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "productId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "productId is required")
	}
	product, ok := s.controller.Product(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "product %s not found", id)
	}

	s.controller.AddToCart(ctx, product)
	return cartStruct(s.controller.Snapshot())
}

func (s *CartServer) RemoveItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "productId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "productId is required")
	}
	item, ok := s.controller.CartItem(models.Product{ID: id})
	if !ok {
		return nil, status.Errorf(codes.NotFound, "product %s is not in the cart", id)
	}

	s.controller.RemoveFromCart(ctx, item)
	return cartStruct(s.controller.Snapshot())
}

func (s *CartServer) SetCustomer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.controller.SetCustomer(models.CustomerInfo{
		Name:    stringField(req, "name"),
		Phone:   stringField(req, "phone"),
		Address: stringField(req, "address"),
	})

	out := map[string]interface{}{"valid": true}
	if err := s.controller.ValidateCustomer(); err != nil {
		out["valid"] = false
		out["error"] = err.Error()
	}
	return structpb.NewStruct(out)
}

func (s *CartServer) PlaceOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res := s.controller.PlaceOrder(ctx)
	switch res.Status {
	case cart.StatusPlaced:
		return structpb.NewStruct(map[string]interface{}{
			"status":  string(res.Status),
			"orderId": res.OrderID,
		})
	case cart.StatusInFlight:
		return nil, status.Error(codes.Aborted, "an order is already being placed")
	case cart.StatusNotReady:
		return nil, status.Error(codes.FailedPrecondition, "cart is empty or customer details are incomplete")
	default:
		return nil, status.Error(codes.Unavailable, "order could not be submitted")
	}
}

func (s *CartServer) WhatsAppLink(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	link, ok := s.controller.WhatsAppLink()
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "cart is empty or customer details are incomplete")
	}
	return structpb.NewStruct(map[string]interface{}{"url": link})
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func cartStruct(state cart.State) (*structpb.Struct, error) {
	items := make([]interface{}, len(state.Items))
	for i, it := range state.Items {
		items[i] = map[string]interface{}{
			"productId": it.Product.ID,
			"name":      it.Product.Name,
			"price":     it.Product.Price.StringFixed(2),
			"quantity":  it.Quantity,
			"stock":     it.Product.Stock,
			"subtotal":  it.Subtotal().StringFixed(2),
		}
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"items":        items,
		"total":        state.Total.StringFixed(2),
		"itemCount":    state.ItemCount,
		"placingOrder": state.PlacingOrder,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode cart: %v", err)
	}
	return out, nil
}
