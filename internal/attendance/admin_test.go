package attendance

import (
	"context"
	"errors"
	"testing"

	"attendance-kiosk/internal/audit"
)

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.admin.EnsureAdmin(ctx, "admin123")
	if err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	if !created {
		t.Error("EnsureAdmin() created = false on empty database")
	}
	created, err = f.admin.EnsureAdmin(ctx, "other")
	if err != nil {
		t.Fatalf("EnsureAdmin() second call error = %v", err)
	}
	if created {
		t.Error("EnsureAdmin() created a second account")
	}
	if n := f.rec.Count(audit.KindInitAdmin); n != 1 {
		t.Errorf("INIT_ADMIN events = %d, want 1", n)
	}
	if err := f.admin.Authenticate(ctx, "admin", "admin123"); err != nil {
		t.Errorf("Authenticate() with first password error = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.admin.EnsureAdmin(ctx, "admin123"); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}

	tests := []struct {
		name     string
		user     string
		password string
		wantErr  bool
	}{
		{"valid", "admin", "admin123", false},
		{"padded username", " admin ", "admin123", false},
		{"wrong password", "admin", "nope", true},
		{"unknown user", "root", "admin123", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.admin.Authenticate(ctx, tt.user, tt.password)
			if tt.wantErr {
				wantRejection(t, err, KindAuthentication, ReasonBadLogin)
				return
			}
			if err != nil {
				t.Errorf("Authenticate() error = %v", err)
			}
		})
	}
	if f.rec.Count(audit.KindAdminLoginFail) != 2 || f.rec.Count(audit.KindAdminLogin) != 2 {
		t.Errorf("login events = %+v", f.rec.Events())
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.admin.EnsureAdmin(ctx, "admin123"); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}

	err := f.admin.ChangePassword(ctx, "admin", "admin123", "new-pass", "other")
	wantRejection(t, err, KindValidation, ReasonPasswordMatch)
	if rej, _ := AsRejection(err); rej.Message() != "New passwords do not match." {
		t.Errorf("Message() = %q", rej.Message())
	}

	err = f.admin.ChangePassword(ctx, "admin", "wrong", "new-pass", "new-pass")
	wantRejection(t, err, KindAuthentication, ReasonBadPassword)
	if rej, _ := AsRejection(err); rej.Message() != "Old password wrong." {
		t.Errorf("Message() = %q", rej.Message())
	}

	if err := f.admin.ChangePassword(ctx, "admin", "admin123", "new-pass", "new-pass"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if err := f.admin.Authenticate(ctx, "admin", "new-pass"); err != nil {
		t.Errorf("Authenticate() with new password error = %v", err)
	}
	if err := f.admin.Authenticate(ctx, "admin", "admin123"); err == nil {
		t.Error("old password still accepted")
	}
	if f.rec.Count(audit.KindAdminPassword) != 1 {
		t.Errorf("ADMIN_PW_CHANGE events = %d, want 1", f.rec.Count(audit.KindAdminPassword))
	}
}

func TestSetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.admin.EnsureAdmin(ctx, "admin123"); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	if err := f.admin.SetPassword(ctx, "admin", "reset-pass"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if err := f.admin.Authenticate(ctx, "admin", "reset-pass"); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
	err := f.admin.SetPassword(ctx, "nobody", "x")
	wantRejection(t, err, KindNotFound, ReasonUnknownAdmin)
	if errors.Is(err, ErrUnavailable) {
		t.Error("unknown admin reported as a storage failure")
	}
}

func TestAddStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.admin.AddStudent(ctx, NewStudent{RollNo: " 12 ", FullName: "Asha", ClassName: "10", Section: "A", PIN: "4321"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	if st.ID == 0 || st.RollNo != "12" {
		t.Errorf("AddStudent() = %+v", st)
	}
	if st.PINHash == "4321" || len(st.Salt) != 32 {
		t.Errorf("PIN not hashed with a fresh salt: hash=%q salt=%q", st.PINHash, st.Salt)
	}

	_, err = f.admin.AddStudent(ctx, NewStudent{RollNo: "12", FullName: "Other", ClassName: "10", Section: "B", PIN: "1"})
	wantRejection(t, err, KindValidation, ReasonRollExists)

	_, err = f.admin.AddStudent(ctx, NewStudent{RollNo: "13", FullName: "", ClassName: "10", Section: "A", PIN: "1"})
	wantRejection(t, err, KindValidation, ReasonMissingField)

	if n := f.rec.Count(audit.KindAddStudent); n != 1 {
		t.Errorf("ADD_STUDENT events = %d, want 1", n)
	}

	other, err := f.admin.AddStudent(ctx, NewStudent{RollNo: "14", FullName: "Ravi", ClassName: "10", Section: "A", PIN: "4321"})
	if err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}
	if other.Salt == st.Salt || other.PINHash == st.PINHash {
		t.Error("two students with the same PIN share salt or hash")
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addStudent(t, "1", "1111", "10", "A")
	f.addStudent(t, "2", "2222", "10", "A")
	f.setCode(t, "C0FFEE")

	if _, err := f.svc.CheckIn(ctx, Request{RollNo: "2", PIN: "2222", SessionCode: "c0ffee"}); err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}

	d, err := f.admin.Dashboard(ctx, f.codes)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.Code != "C0FFEE" || d.TotalStudents != 2 || d.PresentToday != 1 {
		t.Errorf("Dashboard() = %+v", d)
	}
	if len(d.Recent) != 1 || d.Recent[0].RollNo != "2" {
		t.Errorf("Recent = %+v", d.Recent)
	}
}
