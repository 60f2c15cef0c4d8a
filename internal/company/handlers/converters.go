package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	e "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

// structToCandidate exposes a protobuf Struct as a schema candidate.
func structToCandidate(s *structpb.Struct) schema.Candidate {
	if s == nil {
		return schema.Candidate{}
	}
	return schema.Candidate(s.AsMap())
}

// toStruct encodes a response body with the same field names as the REST API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return s, nil
}

// fromStruct decodes field key of s into out.
func fromStruct(s *structpb.Struct, key string, out any) error {
	v, ok := s.GetFields()[key]
	if !ok {
		return fmt.Errorf("response has no %q field", key)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// structToParams reads list parameters. Numbers are accepted as well as
// strings.
func structToParams(s *structpb.Struct) query.Params {
	get := func(key string) string {
		v, ok := s.GetFields()[key]
		if !ok {
			return ""
		}
		switch k := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			return k.StringValue
		case *structpb.Value_NumberValue:
			return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
		default:
			return ""
		}
	}
	return query.Params{
		Search:      get("search"),
		Industry:    get("industry"),
		Location:    get("location"),
		FoundedYear: get("foundedYear"),
		Page:        get("page"),
		Limit:       get("limit"),
		SortBy:      get("sortBy"),
		SortOrder:   get("sortOrder"),
	}
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// mapServiceError maps domain or repository errors to appropriate gRPC status codes.
func (h *CompanyRPC) mapServiceError(err error) error {
	var (
		ve *e.ValidationError
		ce *e.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		st := status.New(codes.InvalidArgument, ve.Message)
		br := &errdetails.BadRequest{}
		for _, f := range ve.Fields {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       f.Field,
				Description: f.Msg,
			})
		}
		if detailed, derr := st.WithDetails(br); derr == nil {
			return detailed.Err()
		}
		return st.Err()
	case errors.As(err, &ce):
		return status.Error(codes.AlreadyExists, ce.Message)
	case errors.Is(err, e.ErrDuplicateName):
		return status.Error(codes.AlreadyExists, MsgNameTaken)
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, MsgNotFound)
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, MsgInternal)
	}
}

// FieldErrorsFromStatus recovers field violations carried by an
// InvalidArgument status.
func FieldErrorsFromStatus(err error) e.FieldErrors {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var fe e.FieldErrors
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			for _, v := range br.GetFieldViolations() {
				fe.Add(v.GetField(), v.GetDescription())
			}
		}
	}
	return fe
}

func requireID(id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("%s: id is required", e.ErrInvalidInput))
	}
	return nil
}
