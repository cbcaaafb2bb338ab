package solver

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/landmark-lite/landmark/domain"
)

// Wire names of the remote solver service.
const (
	ServiceName = "landmark.v1.LandmarkSolver"
	SolveMethod = "/" + ServiceName + "/Solve"
)

// Payload field names.
const (
	FieldTaskID    = "task_id"
	FieldDomain    = "domain"
	FieldTask      = "task"
	FieldLandmarks = "landmarks"
)

// RemoteSolver delegates landmark extraction to a solver service over gRPC.
// The domain and task text are sent inline, so the service does not need
// access to the caller's filesystem.
type RemoteSolver struct {
	conn     grpc.ClientConnInterface
	callOpts []grpc.CallOption
}

// NewRemoteSolver creates a RemoteSolver on an existing connection.
func NewRemoteSolver(conn grpc.ClientConnInterface, opts ...grpc.CallOption) *RemoteSolver {
	return &RemoteSolver{conn: conn, callOpts: opts}
}

// DialRemoteSolver connects to a solver service at target.
// The returned connection must be closed by the caller.
func DialRemoteSolver(target string, opts ...grpc.DialOption) (*RemoteSolver, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to solver service %s: %w", target, err)
	}
	return NewRemoteSolver(conn), conn, nil
}

// Solve implements Solver.
func (s *RemoteSolver) Solve(ctx context.Context, req Request) (domain.LandmarkSet, error) {
	if err := req.Validate(); err != nil {
		return domain.LandmarkSet{}, err
	}
	domainText, err := os.ReadFile(req.DomainPath)
	if err != nil {
		return domain.LandmarkSet{}, fmt.Errorf("%w: read domain: %v", domain.ErrSolver, err)
	}
	taskText, err := os.ReadFile(req.TaskPath)
	if err != nil {
		return domain.LandmarkSet{}, fmt.Errorf("%w: read task: %v", domain.ErrSolver, err)
	}

	in, err := EncodeRequest(req.TaskID, string(domainText), string(taskText))
	if err != nil {
		return domain.LandmarkSet{}, err
	}
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, SolveMethod, in, out, s.callOpts...); err != nil {
		return domain.LandmarkSet{}, fromStatus(req.TaskID, err)
	}
	return DecodeLandmarks(out)
}

func fromStatus(id domain.TaskID, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %s: %v", domain.ErrSolver, id, err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %s", domain.ErrSolverTimeout, id, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("%w: %s: %s: %s", domain.ErrSolver, id, st.Code(), st.Message())
	}
}

// EncodeRequest builds the Solve request payload.
func EncodeRequest(id domain.TaskID, domainText, taskText string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldTaskID: string(id),
		FieldDomain: domainText,
		FieldTask:   taskText,
	})
}

// DecodeRequest extracts the task identifier, domain text and task text.
func DecodeRequest(in *structpb.Struct) (domain.TaskID, string, string, error) {
	fields := in.GetFields()
	domainVal, ok := fields[FieldDomain]
	if !ok {
		return "", "", "", fmt.Errorf("%w: missing %q", domain.ErrInvalidArgument, FieldDomain)
	}
	taskVal, ok := fields[FieldTask]
	if !ok {
		return "", "", "", fmt.Errorf("%w: missing %q", domain.ErrInvalidArgument, FieldTask)
	}
	id := domain.TaskID(fields[FieldTaskID].GetStringValue())
	return id, domainVal.GetStringValue(), taskVal.GetStringValue(), nil
}

// EncodeLandmarks builds the Solve response payload. Landmarks are sorted.
func EncodeLandmarks(set domain.LandmarkSet) (*structpb.Struct, error) {
	items := set.Strings()
	values := make([]any, len(items))
	for i, s := range items {
		values[i] = s
	}
	return structpb.NewStruct(map[string]any{FieldLandmarks: values})
}

// DecodeLandmarks reads the landmark list of a Solve response.
func DecodeLandmarks(out *structpb.Struct) (domain.LandmarkSet, error) {
	val, ok := out.GetFields()[FieldLandmarks]
	if !ok {
		return domain.LandmarkSet{}, fmt.Errorf("%w: response has no %q field", domain.ErrSolver, FieldLandmarks)
	}
	list := val.GetListValue()
	if list == nil {
		return domain.LandmarkSet{}, fmt.Errorf("%w: %q is not a list", domain.ErrSolver, FieldLandmarks)
	}
	items := make([]domain.Landmark, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return domain.LandmarkSet{}, fmt.Errorf("%w: landmark is not a string", domain.ErrSolver)
		}
		items = append(items, domain.Landmark(sv.StringValue))
	}
	return domain.NewLandmarkSet(items...), nil
}
