package mock

import (
	context "context"
	reflect "reflect"

	transport "github.com/idlehelper/bot/idlehelper/transport"
	gomock "go.uber.org/mock/gomock"
)

// MockTransport is a mock of Transport interface.
type MockTransport struct {
	ctrl     *gomock.Controller
	recorder *MockTransportMockRecorder
	isgomock struct{}
}

// MockTransportMockRecorder is the mock recorder for MockTransport.
type MockTransportMockRecorder struct {
	mock *MockTransport
}

// NewMockTransport creates a new mock instance.
func NewMockTransport(ctrl *gomock.Controller) *MockTransport {
	mock := &MockTransport{ctrl: ctrl}
	mock.recorder = &MockTransportMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransport) EXPECT() *MockTransportMockRecorder {
	return m.recorder
}

// Edit mocks base method.
func (m *MockTransport) Edit(ctx context.Context, channelID, messageID int64, msg transport.OutgoingMessage) (*transport.Message, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Edit", ctx, channelID, messageID, msg)
	ret0, _ := ret[0].(*transport.Message)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Edit indicates an expected call of Edit.
func (mr *MockTransportMockRecorder) Edit(ctx, channelID, messageID, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Edit", reflect.TypeOf((*MockTransport)(nil).Edit), ctx, channelID, messageID, msg)
}

// FetchChannel mocks base method.
func (m *MockTransport) FetchChannel(ctx context.Context, channelID int64) (*transport.Channel, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchChannel", ctx, channelID)
	ret0, _ := ret[0].(*transport.Channel)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchChannel indicates an expected call of FetchChannel.
func (mr *MockTransportMockRecorder) FetchChannel(ctx, channelID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchChannel", reflect.TypeOf((*MockTransport)(nil).FetchChannel), ctx, channelID)
}

// FetchUser mocks base method.
func (m *MockTransport) FetchUser(ctx context.Context, userID int64) (*transport.User, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchUser", ctx, userID)
	ret0, _ := ret[0].(*transport.User)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchUser indicates an expected call of FetchUser.
func (mr *MockTransportMockRecorder) FetchUser(ctx, userID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchUser", reflect.TypeOf((*MockTransport)(nil).FetchUser), ctx, userID)
}

// Prompt mocks base method.
func (m *MockTransport) Prompt(ctx context.Context, req transport.PromptRequest) (*transport.PromptResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Prompt", ctx, req)
	ret0, _ := ret[0].(*transport.PromptResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Prompt indicates an expected call of Prompt.
func (mr *MockTransportMockRecorder) Prompt(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Prompt", reflect.TypeOf((*MockTransport)(nil).Prompt), ctx, req)
}

// React mocks base method.
func (m *MockTransport) React(ctx context.Context, channelID, messageID int64, emoji string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "React", ctx, channelID, messageID, emoji)
	ret0, _ := ret[0].(error)
	return ret0
}

// React indicates an expected call of React.
func (mr *MockTransportMockRecorder) React(ctx, channelID, messageID, emoji any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "React", reflect.TypeOf((*MockTransport)(nil).React), ctx, channelID, messageID, emoji)
}

// Send mocks base method.
func (m *MockTransport) Send(ctx context.Context, channelID int64, msg transport.OutgoingMessage) (*transport.Message, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", ctx, channelID, msg)
	ret0, _ := ret[0].(*transport.Message)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Send indicates an expected call of Send.
func (mr *MockTransportMockRecorder) Send(ctx, channelID, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockTransport)(nil).Send), ctx, channelID, msg)
}

// WaitForEdit mocks base method.
func (m *MockTransport) WaitForEdit(ctx context.Context, channelID, messageID int64, match func(*transport.Message) bool) (*transport.Message, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WaitForEdit", ctx, channelID, messageID, match)
	ret0, _ := ret[0].(*transport.Message)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// WaitForEdit indicates an expected call of WaitForEdit.
func (mr *MockTransportMockRecorder) WaitForEdit(ctx, channelID, messageID, match any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WaitForEdit", reflect.TypeOf((*MockTransport)(nil).WaitForEdit), ctx, channelID, messageID, match)
}
