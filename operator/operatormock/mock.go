// Package operatormock is a hand-written, go.uber.org/mock-shaped mock
// of operator.Library, following the Controller/EXPECT() generated-mock
// convention without requiring mockgen to have actually run over this
// package.
package operatormock

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/operator"
)

// MockLibrary is a mock of the operator.Library interface.
type MockLibrary struct {
	ctrl     *gomock.Controller
	recorder *MockLibraryMockRecorder
}

// MockLibraryMockRecorder is the mock recorder for MockLibrary.
type MockLibraryMockRecorder struct {
	mock *MockLibrary
}

// NewMockLibrary creates a new mock instance.
func NewMockLibrary(ctrl *gomock.Controller) *MockLibrary {
	mock := &MockLibrary{ctrl: ctrl}
	mock.recorder = &MockLibraryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected
// use.
func (m *MockLibrary) EXPECT() *MockLibraryMockRecorder {
	return m.recorder
}

func (m *MockLibrary) UC2UE(width float64) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UC2UE", width)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) UC2UE(width any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UC2UE", reflect.TypeOf((*MockLibrary)(nil).UC2UE), width)
}

func (m *MockLibrary) UE2UC(width float64, octant int) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UE2UC", width, octant)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) UE2UC(width, octant any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UE2UC", reflect.TypeOf((*MockLibrary)(nil).UE2UC), width, octant)
}

func (m *MockLibrary) DC2DE(width float64) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DC2DE", width)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) DC2DE(width any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DC2DE", reflect.TypeOf((*MockLibrary)(nil).DC2DE), width)
}

func (m *MockLibrary) DE2DC(width float64, octant int) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DE2DC", width, octant)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) DE2DC(width, octant any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DE2DC", reflect.TypeOf((*MockLibrary)(nil).DE2DC), width, octant)
}

func (m *MockLibrary) UE2DC(width float64, delta boxkey.Index3) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UE2DC", width, delta)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) UE2DC(width, delta any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UE2DC", reflect.TypeOf((*MockLibrary)(nil).UE2DC), width, delta)
}

func (m *MockLibrary) DirUC2UE(width float64, d boxkey.Direction) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DirUC2UE", width, d)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) DirUC2UE(width, d any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DirUC2UE", reflect.TypeOf((*MockLibrary)(nil).DirUC2UE), width, d)
}

func (m *MockLibrary) DirUE2UC(width float64, d boxkey.Direction, octant int) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DirUE2UC", width, d, octant)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) DirUE2UC(width, d, octant any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DirUE2UC", reflect.TypeOf((*MockLibrary)(nil).DirUE2UC), width, d, octant)
}

func (m *MockLibrary) DirDC2DE(width float64, d boxkey.Direction) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DirDC2DE", width, d)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) DirDC2DE(width, d any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DirDC2DE", reflect.TypeOf((*MockLibrary)(nil).DirDC2DE), width, d)
}

func (m *MockLibrary) DirDE2DC(width float64, d boxkey.Direction, octant int) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DirDE2DC", width, d, octant)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) DirDE2DC(width, d, octant any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DirDE2DC", reflect.TypeOf((*MockLibrary)(nil).DirDE2DC), width, d, octant)
}

func (m *MockLibrary) DirUE2DC(width float64, d boxkey.Direction, delta boxkey.Index3) *operator.Matrix {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DirUE2DC", width, d, delta)
	ret0, _ := ret[0].(*operator.Matrix)
	return ret0
}

func (mr *MockLibraryMockRecorder) DirUE2DC(width, d, delta any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DirUE2DC", reflect.TypeOf((*MockLibrary)(nil).DirUE2DC), width, d, delta)
}

var _ operator.Library = (*MockLibrary)(nil)
