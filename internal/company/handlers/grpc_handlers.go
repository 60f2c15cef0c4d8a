package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gartstein/directory/internal/company/models"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "company.v1.CompanyService"

// CompanyServiceServer is the gRPC contract. Messages are
// google.protobuf.Struct values shaped like the REST bodies.
type CompanyServiceServer interface {
	CreateCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCompanies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// CompanyRPC provides gRPC methods for Company operations,
// mapping requests to a CompanyController interface.
type CompanyRPC struct {
	service CompanyController
	logger  *zap.Logger
}

var _ CompanyServiceServer = (*CompanyRPC)(nil)

// NewCompanyRPC constructs a new CompanyRPC with the given service and logger.
func NewCompanyRPC(service CompanyController, logger *zap.Logger) *CompanyRPC {
	return &CompanyRPC{
		service: service,
		logger:  logger.Named("grpc_handler"),
	}
}

// CreateCompany takes the company fields at the top level of the request.
func (h *CompanyRPC) CreateCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	created, err := h.service.CreateCompany(ctx, structToCandidate(req))
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(dataResponse{Success: true, Data: created})
}

// GetCompany expects {"id": ...}.
func (h *CompanyRPC) GetCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if err := requireID(id); err != nil {
		return nil, err
	}
	company, err := h.service.GetCompany(ctx, id)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(dataResponse{Success: true, Data: company})
}

// ListCompanies accepts the REST query parameters as fields.
func (h *CompanyRPC) ListCompanies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	page, err := h.service.ListCompanies(ctx, structToParams(req))
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	data := page.Companies
	if data == nil {
		data = []models.Company{}
	}
	return h.respond(listResponse{
		Success:    true,
		Total:      page.Total,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Data:       data,
	})
}

// UpdateCompany expects {"id": ..., "company": {...}}.
func (h *CompanyRPC) UpdateCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if err := requireID(id); err != nil {
		return nil, err
	}
	updated, err := h.service.UpdateCompany(ctx, id, structToCandidate(req.GetFields()["company"].GetStructValue()))
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(dataResponse{Success: true, Data: updated})
}

// DeleteCompany expects {"id": ...}.
func (h *CompanyRPC) DeleteCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if err := requireID(id); err != nil {
		return nil, err
	}
	if err := h.service.DeleteCompany(ctx, id); err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(messageResponse{Success: true, Message: MsgDeleted})
}

func (h *CompanyRPC) respond(body any) (*structpb.Struct, error) {
	s, err := toStruct(body)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return nil, status.Error(codes.Internal, MsgInternal)
	}
	return s, nil
}

// WriteMethods lists the full names of the mutating RPCs.
func WriteMethods() []string {
	names := []string{"CreateCompany", "UpdateCompany", "DeleteCompany"}
	for i, n := range names {
		names[i] = "/" + ServiceName + "/" + n
	}
	return names
}

// RegisterCompanyServiceServer registers srv on s.
func RegisterCompanyServiceServer(s grpc.ServiceRegistrar, srv CompanyServiceServer) {
	s.RegisterService(&companyServiceDesc, srv)
}

func unaryHandler(name string, call func(CompanyServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CompanyServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(CompanyServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var companyServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompanyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateCompany", CompanyServiceServer.CreateCompany),
		unaryHandler("GetCompany", CompanyServiceServer.GetCompany),
		unaryHandler("ListCompanies", CompanyServiceServer.ListCompanies),
		unaryHandler("UpdateCompany", CompanyServiceServer.UpdateCompany),
		unaryHandler("DeleteCompany", CompanyServiceServer.DeleteCompany),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "company/v1/company.proto",
}

// CompanyServiceClient calls CompanyServiceServer over a connection.
type CompanyServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCompanyServiceClient wraps cc.
func NewCompanyServiceClient(cc grpc.ClientConnInterface) *CompanyServiceClient {
	return &CompanyServiceClient{cc: cc}
}

func (c *CompanyServiceClient) invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCompany sends the company fields and decodes the stored record.
func (c *CompanyServiceClient) CreateCompany(ctx context.Context, fields map[string]any, opts ...grpc.CallOption) (*models.Company, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return c.company(c.invoke(ctx, "CreateCompany", req, opts...))
}

func (c *CompanyServiceClient) GetCompany(ctx context.Context, id string, opts ...grpc.CallOption) (*models.Company, error) {
	return c.company(c.invoke(ctx, "GetCompany", idRequest(id), opts...))
}

// ListCompanies sends params as strings and decodes one page.
func (c *CompanyServiceClient) ListCompanies(ctx context.Context, params map[string]string, opts ...grpc.CallOption) (*models.Page, error) {
	fields := make(map[string]*structpb.Value, len(params))
	for k, v := range params {
		fields[k] = structpb.NewStringValue(v)
	}
	resp, err := c.invoke(ctx, "ListCompanies", &structpb.Struct{Fields: fields}, opts...)
	if err != nil {
		return nil, err
	}
	var page listResponse
	raw, err := resp.MarshalJSON()
	if err == nil {
		err = json.Unmarshal(raw, &page)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &models.Page{
		Companies:  page.Data,
		Total:      page.Total,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	}, nil
}

func (c *CompanyServiceClient) UpdateCompany(ctx context.Context, id string, fields map[string]any, opts ...grpc.CallOption) (*models.Company, error) {
	company, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	req := idRequest(id)
	req.Fields["company"] = structpb.NewStructValue(company)
	return c.company(c.invoke(ctx, "UpdateCompany", req, opts...))
}

func (c *CompanyServiceClient) DeleteCompany(ctx context.Context, id string, opts ...grpc.CallOption) error {
	_, err := c.invoke(ctx, "DeleteCompany", idRequest(id), opts...)
	return err
}

func (c *CompanyServiceClient) company(resp *structpb.Struct, err error) (*models.Company, error) {
	if err != nil {
		return nil, err
	}
	var company models.Company
	if err := fromStruct(resp, "data", &company); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &company, nil
}

func idRequest(id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"id": structpb.NewStringValue(id)}}
}
