package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	"github.com/cadenza-hq/music-crm-api/internal/repository"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
)

// --- Stubs ---

type admissionRepoStub struct {
	lastCommit  *repository.AllocationCommit
	commitErr   error
	admissions  map[string]*models.Admission
	updated     *models.Admission
	softDeleted []string
	hardDeleted []string
	slotLinks   []models.AdmissionSlotLink
}

func (s *admissionRepoStub) CreateAllocation(_ context.Context, commit repository.AllocationCommit) (*models.Admission, error) {
	s.lastCommit = &commit
	if s.commitErr != nil {
		return nil, s.commitErr
	}
	stored := *commit.Admission
	if stored.ID == "" {
		stored.ID = "adm-1"
	}
	if s.admissions == nil {
		s.admissions = map[string]*models.Admission{}
	}
	s.admissions[stored.ID] = &stored
	return &stored, nil
}

func (s *admissionRepoStub) FindByID(_ context.Context, id string) (*models.Admission, error) {
	adm, ok := s.admissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return adm, nil
}

func (s *admissionRepoStub) FindDetailByID(_ context.Context, id string) (*models.AdmissionDetail, error) {
	adm, ok := s.admissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.AdmissionDetail{Admission: *adm, CourseName: "Piano", PlanName: "Standard"}, nil
}

func (s *admissionRepoStub) List(_ context.Context, _ models.AdmissionFilter) ([]models.AdmissionDetail, int, error) {
	var out []models.AdmissionDetail
	for _, adm := range s.admissions {
		out = append(out, models.AdmissionDetail{Admission: *adm})
	}
	return out, len(out), nil
}

func (s *admissionRepoStub) Update(_ context.Context, adm *models.Admission) error {
	s.updated = adm
	s.admissions[adm.ID] = adm
	return nil
}

func (s *admissionRepoStub) SoftDelete(_ context.Context, id string) error {
	s.softDeleted = append(s.softDeleted, id)
	return nil
}

func (s *admissionRepoStub) HardDelete(_ context.Context, id string) error {
	s.hardDeleted = append(s.hardDeleted, id)
	return nil
}

func (s *admissionRepoStub) ListSlotLinks(_ context.Context, _ string) ([]models.AdmissionSlotLink, error) {
	return s.slotLinks, nil
}

type leadStoreStub struct {
	leads         map[string]*models.Lead
	stages        map[string]*models.LeadStage
	stageUpdates  map[string]string
	updateStgeErr error
}

func (s *leadStoreStub) FindByID(_ context.Context, id string) (*models.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return lead, nil
}

func (s *leadStoreStub) FindStageByName(_ context.Context, name string) (*models.LeadStage, error) {
	stage, ok := s.stages[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stage, nil
}

func (s *leadStoreStub) UpdateStage(_ context.Context, leadID, stageID string) error {
	if s.updateStgeErr != nil {
		return s.updateStgeErr
	}
	if s.stageUpdates == nil {
		s.stageUpdates = map[string]string{}
	}
	s.stageUpdates[leadID] = stageID
	return nil
}

type planReaderStub struct{ plans map[string]*models.CoursePlan }

func (s planReaderStub) FindByID(_ context.Context, id string) (*models.CoursePlan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return plan, nil
}

type courseReaderStub struct{ courses map[string]*models.Course }

func (s courseReaderStub) FindByID(_ context.Context, id string) (*models.Course, error) {
	course, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

type studentAccountsStub struct {
	users       map[string]*models.User
	provisioned *models.User
	provisonErr error
}

func (s *studentAccountsStub) ProvisionStudent(_ context.Context, fullName, email, phone, _ string) (*models.User, error) {
	if s.provisonErr != nil {
		return nil, s.provisonErr
	}
	user := &models.User{ID: "student-new", FullName: fullName, Email: email, Phone: phone, Role: models.RoleStudent, Active: true}
	s.provisioned = user
	return user, nil
}

func (s *studentAccountsStub) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type resolverStub struct {
	resolved *ResolvedSlots
	err      error
}

func (s resolverStub) Resolve(_ context.Context, _ []dto.WeeklySlotSelection) (*ResolvedSlots, error) {
	return s.resolved, s.err
}

type capacityStub struct {
	allocations []SlotAllocation
	err         error
}

func (s capacityStub) Validate(_ context.Context, _ string, _ models.WeeklySlots) ([]SlotAllocation, error) {
	return s.allocations, s.err
}

type attendanceReaderStub struct{ rows []models.Attendance }

func (s attendanceReaderStub) ListByStudentAndSlots(_ context.Context, _ string, _ []string) ([]models.Attendance, error) {
	return s.rows, nil
}

// --- Fixture ---

type admissionFixture struct {
	service    *AdmissionService
	admissions *admissionRepoStub
	leads      *leadStoreStub
	students   *studentAccountsStub
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func newAdmissionFixture(t *testing.T) *admissionFixture {
	t.Helper()
	admissions := &admissionRepoStub{admissions: map[string]*models.Admission{}}
	leads := &leadStoreStub{
		leads: map[string]*models.Lead{
			"lead-1": {ID: "lead-1", FullName: "Ana Souza", Email: "ana@example.com", OwnerID: "staff-1", StageID: "stage-contacted"},
		},
		stages: map[string]*models.LeadStage{
			"onboarded": {ID: "stage-onboarded", Name: "onboarded", Position: 5},
		},
	}
	plans := planReaderStub{plans: map[string]*models.CoursePlan{
		"plan-1": {ID: "plan-1", Name: "Standard", DurationMonths: 3, ClassesPerWeek: 2, TotalClasses: 24, PriceCents: 120000, Active: true},
	}}
	courses := courseReaderStub{courses: map[string]*models.Course{
		"piano": {ID: "piano", Name: "Piano", Active: true},
	}}
	students := &studentAccountsStub{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, Active: true},
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, Active: true},
	}}
	resolver := resolverStub{resolved: &ResolvedSlots{
		Slots: models.WeeklySlots{
			{TimeSlotID: "ts-mon", DayOfWeek: 1},
			{TimeSlotID: "ts-thu", DayOfWeek: 4},
		},
		Weekdays: []int{1, 4},
	}}
	capacity := capacityStub{allocations: []SlotAllocation{
		{TimeSlotID: "ts-mon", ClassroomSlotID: "cs-1", DayOfWeek: 1, Capacity: 8},
		{TimeSlotID: "ts-thu", ClassroomSlotID: "cs-2", DayOfWeek: 4, Capacity: 8},
	}}

	svc := NewAdmissionService(
		admissions, leads, plans, courses, students,
		resolver, capacity, attendanceReaderStub{}, nil,
		nil, nil,
		AdmissionConfig{OnboardedStageName: "onboarded"},
	)
	return &admissionFixture{service: svc, admissions: admissions, leads: leads, students: students}
}

func baseRequest() dto.CreateAdmissionRequest {
	return dto.CreateAdmissionRequest{
		LeadID:       strPtr("lead-1"),
		CoursePlanID: "plan-1",
		CourseID:     "piano",
		StartDate:    "2024-01-01",
		WeeklySlots: []dto.WeeklySlotSelection{
			{TimeSlotID: "ts-mon"},
			{TimeSlotID: "ts-thu"},
		},
	}
}

// --- Tests ---

func TestAdmissionCreateFromLead(t *testing.T) {
	f := newAdmissionFixture(t)

	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)

	assert.Equal(t, models.AdmissionStatusActive, detail.Status)
	require.NotNil(t, detail.StudentID)
	assert.Equal(t, "student-new", *detail.StudentID)
	assert.Equal(t, 24, detail.BaseClasses)
	assert.Equal(t, 24, detail.FinalClasses)
	assert.Equal(t, int64(120000), detail.FinalPriceCents)

	commit := f.admissions.lastCommit
	require.NotNil(t, commit)
	assert.Len(t, commit.SlotLinks, 2)
	assert.Len(t, commit.Enrollments, 2)
	assert.Len(t, commit.Attendance, 24)
	assert.Equal(t, map[string]int{"cs-1": 8, "cs-2": 8}, commit.Capacities)

	// First occurrence is the Monday start date itself.
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), commit.Attendance[0].ClassDate)
	assert.Equal(t, models.AttendanceStatusScheduled, commit.Attendance[0].Status)

	// Lead advanced to onboarded after the commit.
	assert.Equal(t, "stage-onboarded", f.leads.stageUpdates["lead-1"])
}

func TestAdmissionCreateSlotCountMismatch(t *testing.T) {
	f := newAdmissionFixture(t)
	req := baseRequest()
	req.WeeklySlots = req.WeeklySlots[:1]

	_, err := f.service.Create(context.Background(), nil, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "weekly slots")
}

func TestAdmissionCreateBadStartDate(t *testing.T) {
	f := newAdmissionFixture(t)
	req := baseRequest()
	req.StartDate = "01/01/2024"

	_, err := f.service.Create(context.Background(), nil, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAdmissionCreateExtraClasses(t *testing.T) {
	f := newAdmissionFixture(t)
	req := baseRequest()
	req.ExtraClasses = intPtr(4)

	detail, err := f.service.Create(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, 24, detail.BaseClasses)
	assert.Equal(t, 4, detail.ExtraClasses)
	assert.Equal(t, 28, detail.FinalClasses)
	assert.Len(t, f.admissions.lastCommit.Attendance, 28)
}

func TestAdmissionCreateDiscounts(t *testing.T) {
	cases := []struct {
		name          string
		discountType  string
		discountValue *int64
		wantErr       bool
		wantFinal     int64
	}{
		{name: "none defaults to zero value", discountType: "", discountValue: int64Ptr(500), wantFinal: 120000},
		{name: "percent", discountType: "PERCENT", discountValue: int64Ptr(25), wantFinal: 90000},
		{name: "percent over 100 rejected", discountType: "PERCENT", discountValue: int64Ptr(150), wantErr: true},
		{name: "amount", discountType: "AMOUNT", discountValue: int64Ptr(20000), wantFinal: 100000},
		{name: "amount clamps at zero", discountType: "AMOUNT", discountValue: int64Ptr(999999), wantFinal: 0},
		{name: "negative rejected", discountType: "AMOUNT", discountValue: int64Ptr(-5), wantErr: true},
		{name: "unknown type rejected", discountType: "VOUCHER", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAdmissionFixture(t)
			req := baseRequest()
			req.DiscountType = tc.discountType
			req.DiscountValue = tc.discountValue

			detail, err := f.service.Create(context.Background(), nil, req)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantFinal, detail.FinalPriceCents)
		})
	}
}

func TestAdmissionCreateStaffCannotTouchOthersLead(t *testing.T) {
	f := newAdmissionFixture(t)
	actor := &models.JWTClaims{UserID: "staff-2", Role: models.RoleStaff}

	_, err := f.service.Create(context.Background(), actor, baseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAdmissionCreateOwnerStaffAllowed(t *testing.T) {
	f := newAdmissionFixture(t)
	actor := &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff}

	_, err := f.service.Create(context.Background(), actor, baseRequest())
	require.NoError(t, err)
}

func TestAdmissionCreateLeadAlreadyOnboarded(t *testing.T) {
	f := newAdmissionFixture(t)
	f.leads.leads["lead-1"].StageID = "stage-onboarded"

	_, err := f.service.Create(context.Background(), nil, baseRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "onboarded")
}

func TestAdmissionCreateMissingOnboardedStage(t *testing.T) {
	f := newAdmissionFixture(t)
	f.leads.stages = map[string]*models.LeadStage{}

	_, err := f.service.Create(context.Background(), nil, baseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	// Nothing was committed.
	assert.Nil(t, f.admissions.lastCommit)
}

func TestAdmissionCreateExplicitStudent(t *testing.T) {
	f := newAdmissionFixture(t)
	req := baseRequest()
	req.LeadID = nil
	req.StudentID = strPtr("student-1")

	detail, err := f.service.Create(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, "student-1", *detail.StudentID)
	assert.Nil(t, f.students.provisioned)
}

func TestAdmissionCreateRejectsNonStudentUser(t *testing.T) {
	f := newAdmissionFixture(t)
	req := baseRequest()
	req.LeadID = nil
	req.StudentID = strPtr("teacher-1")

	_, err := f.service.Create(context.Background(), nil, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAdmissionCreateLeadWithoutEmailStaysPending(t *testing.T) {
	f := newAdmissionFixture(t)
	f.leads.leads["lead-1"].Email = ""

	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusPending, detail.Status)
	assert.Nil(t, detail.StudentID)

	commit := f.admissions.lastCommit
	require.NotNil(t, commit)
	assert.Empty(t, commit.Enrollments)
	assert.Empty(t, commit.Attendance)
	assert.Len(t, commit.SlotLinks, 2)
}

func TestAdmissionCreateNoIdentity(t *testing.T) {
	f := newAdmissionFixture(t)
	req := baseRequest()
	req.LeadID = nil

	_, err := f.service.Create(context.Background(), nil, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAdmissionCreateCapacityRaceSurfacesConflict(t *testing.T) {
	f := newAdmissionFixture(t)
	f.admissions.commitErr = &models.CapacityExceededError{
		Slots: []models.SlotCapacityDetail{{TimeSlotID: "ts-mon", ClassroomSlotID: "cs-1", Capacity: 8, Enrolled: 8}},
	}

	_, err := f.service.Create(context.Background(), nil, baseRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErr.Code)
	assert.NotNil(t, appErr.Details)
	// Failed commit must not advance the lead.
	assert.Empty(t, f.leads.stageUpdates)
}

func TestAdmissionCreateDuplicateEnrollmentConflict(t *testing.T) {
	f := newAdmissionFixture(t)
	f.admissions.commitErr = repository.ErrDuplicateActiveEnrollment

	_, err := f.service.Create(context.Background(), nil, baseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAdmissionCreateStageAdvanceFailureDoesNotFail(t *testing.T) {
	f := newAdmissionFixture(t)
	f.leads.updateStgeErr = sql.ErrConnDone

	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, detail.ID)
}

func TestAdmissionUpdateRecomputesDerivedFields(t *testing.T) {
	f := newAdmissionFixture(t)
	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)

	updated, err := f.service.Update(context.Background(), detail.ID, dto.UpdateAdmissionRequest{
		ExtraClasses:  intPtr(6),
		DiscountType:  strPtr("PERCENT"),
		DiscountValue: int64Ptr(10),
		Status:        strPtr("COMPLETED"),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.FinalClasses)
	assert.Equal(t, int64(108000), updated.FinalPriceCents)
	assert.Equal(t, models.AdmissionStatusCompleted, updated.Status)
}

func TestAdmissionUpdateUnknownStatus(t *testing.T) {
	f := newAdmissionFixture(t)
	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)

	_, err = f.service.Update(context.Background(), detail.ID, dto.UpdateAdmissionRequest{Status: strPtr("ARCHIVED")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAdmissionUpdateNotFound(t *testing.T) {
	f := newAdmissionFixture(t)

	_, err := f.service.Update(context.Background(), "missing", dto.UpdateAdmissionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAdmissionDelete(t *testing.T) {
	f := newAdmissionFixture(t)
	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), detail.ID))
	assert.Equal(t, []string{detail.ID}, f.admissions.softDeleted)
}

func TestAdmissionExportScheduleCSV(t *testing.T) {
	f := newAdmissionFixture(t)
	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)

	f.admissions.slotLinks = []models.AdmissionSlotLink{
		{AdmissionID: detail.ID, TimeSlotID: "ts-mon", ClassroomSlotID: "cs-1", DayOfWeek: 1},
	}
	svc := f.service
	svc.attendance = attendanceReaderStub{rows: []models.Attendance{
		{StudentID: *detail.StudentID, ClassroomSlotID: "cs-1", ClassDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), Status: models.AttendanceStatusScheduled},
	}}

	payload, filename, contentType, err := svc.ExportSchedule(context.Background(), detail.ID, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, filename, detail.ID)
	assert.Contains(t, string(payload), "2024-01-01")
	assert.Contains(t, string(payload), "SCHEDULED")
}

func TestAdmissionExportScheduleWithoutStudent(t *testing.T) {
	f := newAdmissionFixture(t)
	f.leads.leads["lead-1"].Email = ""
	detail, err := f.service.Create(context.Background(), nil, baseRequest())
	require.NoError(t, err)

	_, _, _, err = f.service.ExportSchedule(context.Background(), detail.ID, "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
