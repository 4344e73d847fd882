package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/mr1hm/ocean-sentinel/internal/models"
)

const serviceName = "oceansentinel.v1.DetectionService"

type Detection struct {
	Id           string  `json:"id"`
	LocationId   string  `json:"location_id"`
	LocationName string  `json:"location_name"`
	RiskLevel    string  `json:"risk_level"`
	AnomalyLevel string  `json:"anomaly_level"`
	Confidence   float64 `json:"confidence_score"`
	RiskScore    float64 `json:"risk_score"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Timestamp    int64   `json:"timestamp"`
}

type GetDetectionRequest struct {
	Id string `json:"id"`
}

type ListDetectionsRequest struct {
	Limit        int32   `json:"limit,omitempty"`
	LocationId   *string `json:"location_id,omitempty"`
	MinRiskLevel *string `json:"min_risk_level,omitempty"`
	Since        *int64  `json:"since,omitempty"` // unix seconds
}

type ListDetectionsResponse struct {
	Detections []*Detection `json:"detections"`
}

type StreamAlertsRequest struct {
	LocationId   *string `json:"location_id,omitempty"`
	MinRiskLevel *string `json:"min_risk_level,omitempty"`
}

type DetectionServiceServer interface {
	GetDetection(context.Context, *GetDetectionRequest) (*Detection, error)
	ListDetections(context.Context, *ListDetectionsRequest) (*ListDetectionsResponse, error)
	StreamAlerts(*StreamAlertsRequest, AlertStream) error
}

// AlertStream is the server side of StreamAlerts.
type AlertStream interface {
	Send(*Detection) error
	Context() context.Context
}

type alertStream struct {
	grpc.ServerStream
}

func (s *alertStream) Send(d *Detection) error {
	return s.ServerStream.SendMsg(d)
}

func RegisterDetectionServiceServer(r grpc.ServiceRegistrar, srv DetectionServiceServer) {
	r.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DetectionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDetection", Handler: getDetectionHandler},
		{MethodName: "ListDetections", Handler: listDetectionsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamAlerts", Handler: streamAlertsHandler, ServerStreams: true},
	},
	Metadata: "oceansentinel/v1/detections.proto",
}

func getDetectionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetDetectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectionServiceServer).GetDetection(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetDetection"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DetectionServiceServer).GetDetection(ctx, req.(*GetDetectionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listDetectionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListDetectionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectionServiceServer).ListDetections(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListDetections"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DetectionServiceServer).ListDetections(ctx, req.(*ListDetectionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamAlertsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamAlertsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DetectionServiceServer).StreamAlerts(in, &alertStream{stream})
}

func toWire(d *models.Detection) *Detection {
	return &Detection{
		Id:           d.ID,
		LocationId:   d.LocationID,
		LocationName: d.LocationName,
		RiskLevel:    string(d.RiskLevel),
		AnomalyLevel: string(d.AnomalyLevel),
		Confidence:   d.Confidence,
		RiskScore:    d.RiskScore,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		Timestamp:    d.Timestamp.Unix(),
	}
}

// Client is a thin caller for the detection service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetDetection(ctx context.Context, id string) (*Detection, error) {
	out := new(Detection)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/GetDetection", &GetDetectionRequest{Id: id}, out,
		grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDetections(ctx context.Context, req *ListDetectionsRequest) (*ListDetectionsResponse, error) {
	out := new(ListDetectionsResponse)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/ListDetections", req, out,
		grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StreamAlerts opens the alert stream; call Recv until it returns an error.
func (c *Client) StreamAlerts(ctx context.Context, req *StreamAlertsRequest) (*AlertReceiver, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+serviceName+"/StreamAlerts",
		grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &AlertReceiver{stream: stream}, nil
}

type AlertReceiver struct {
	stream grpc.ClientStream
}

func (r *AlertReceiver) Recv() (*Detection, error) {
	d := new(Detection)
	if err := r.stream.RecvMsg(d); err != nil {
		return nil, err
	}
	return d, nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
