package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/ocean-sentinel/internal/models"
	"github.com/mr1hm/ocean-sentinel/internal/repository"
)

type Server struct {
	repo        repository.DetectionRepository
	broadcaster *Broadcaster
	grpcServer  *grpc.Server
}

func NewServer(repo repository.DetectionRepository, broadcaster *Broadcaster) *Server {
	return &Server{
		repo:        repo,
		broadcaster: broadcaster,
	}
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

// Serve blocks serving on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.grpcServer = grpc.NewServer()
	RegisterDetectionServiceServer(s.grpcServer, s)
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

func (s *Server) GetDetection(ctx context.Context, req *GetDetectionRequest) (*Detection, error) {
	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	d, err := s.repo.GetByID(ctx, req.Id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "detection not found: %s", req.Id)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to get detection: %v", err)
	}

	return toWire(d), nil
}

func (s *Server) ListDetections(ctx context.Context, req *ListDetectionsRequest) (*ListDetectionsResponse, error) {
	filter := repository.Filter{
		Limit:      int(req.Limit),
		LocationID: req.LocationId,
	}
	if req.MinRiskLevel != nil {
		level, ok := models.ParseRiskLevel(*req.MinRiskLevel)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown risk level: %s", *req.MinRiskLevel)
		}
		filter.MinRiskLevel = &level
	}
	if req.Since != nil {
		since := unixTime(*req.Since)
		filter.Since = &since
	}

	detections, err := s.repo.ListDetections(ctx, filter)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to list detections: %v", err)
	}

	resp := &ListDetectionsResponse{
		Detections: make([]*Detection, len(detections)),
	}
	for i := range detections {
		resp.Detections[i] = toWire(&detections[i])
	}
	return resp, nil
}

func (s *Server) StreamAlerts(req *StreamAlertsRequest, stream AlertStream) error {
	var filter AlertFilter
	if req.LocationId != nil {
		filter.LocationID = *req.LocationId
	}
	if req.MinRiskLevel != nil {
		level, ok := models.ParseRiskLevel(*req.MinRiskLevel)
		if !ok {
			return status.Errorf(codes.InvalidArgument, "unknown risk level: %s", *req.MinRiskLevel)
		}
		filter.MinRisk = level
	}

	id, ch := s.broadcaster.Subscribe(filter)
	defer s.broadcaster.Unsubscribe(id)

	slog.Info("client subscribed to alert stream", "subscriber_id", id)

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from alert stream", "subscriber_id", id)
			return nil
		case d, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(toWire(d)); err != nil {
				slog.Error("failed to send alert to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}
