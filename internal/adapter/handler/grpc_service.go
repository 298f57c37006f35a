package handler

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName            = "booking.v1.Booking"
	methodReserve          = "/" + serviceName + "/Reserve"
	methodAvailability     = "/" + serviceName + "/Availability"
	methodListAvailability = "/" + serviceName + "/ListAvailability"
	methodGetBooking       = "/" + serviceName + "/GetBooking"
)

type ReserveRequest struct {
	TrainID   int64  `json:"train_id"`
	UserID    int64  `json:"user_id"`
	NoOfSeats int    `json:"no_of_seats"`
	RequestID string `json:"request_id"`
}

type ReserveResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Code        string `json:"code,omitempty"`
	BookingID   string `json:"booking_id,omitempty"`
	SeatNumbers []int  `json:"seat_numbers,omitempty"`
}

type AvailabilityRequest struct {
	TrainID int64 `json:"train_id"`
}

type AvailabilityResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Code           string `json:"code,omitempty"`
	TrainID        int64  `json:"train_id"`
	TrainName      string `json:"train_name,omitempty"`
	AvailableSeats int    `json:"available_seats"`
}

type ListAvailabilityRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type ListAvailabilityResponse struct {
	Trains []TrainAvailability `json:"trains"`
}

type GetBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type GetBookingResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Booking *BookingDetail `json:"booking,omitempty"`
}

// BookingServer is the server API of booking.v1.Booking.
type BookingServer interface {
	Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error)
	Availability(ctx context.Context, req *AvailabilityRequest) (*AvailabilityResponse, error)
	ListAvailability(ctx context.Context, req *ListAvailabilityRequest) (*ListAvailabilityResponse, error)
	GetBooking(ctx context.Context, req *GetBookingRequest) (*GetBookingResponse, error)
}

func RegisterBookingServer(s grpc.ServiceRegistrar, srv BookingServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BookingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Reserve",
			Handler:    unaryHandler(methodReserve, BookingServer.Reserve),
		},
		{
			MethodName: "Availability",
			Handler:    unaryHandler(methodAvailability, BookingServer.Availability),
		},
		{
			MethodName: "ListAvailability",
			Handler:    unaryHandler(methodListAvailability, BookingServer.ListAvailability),
		},
		{
			MethodName: "GetBooking",
			Handler:    unaryHandler(methodGetBooking, BookingServer.GetBooking),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.proto",
}

func unaryHandler[Req, Resp any](fullMethod string, call func(BookingServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
