package analyzer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/classroom-connect/quiz-service/internal/config"
)

func newTestClient(baseURL string) *RestyClient {
	return NewClient(config.AnalyzerConfig{
		BaseURL:       baseURL,
		DetailTimeout: 5 * time.Second,
		UpdateTimeout: 10 * time.Second,
		StatusTimeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestCourseDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/staff/course-detail" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("courseId"); got != "19Z503" {
			t.Errorf("expected courseId=19Z503, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CourseDetailResponse{
			Success:         true,
			CourseID:        "19Z503",
			InstructorEmail: "ramani@psgtech.ac.in",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	detail, err := client.CourseDetail(context.Background(), "19Z503")
	if err != nil {
		t.Fatalf("CourseDetail failed: %v", err)
	}
	if !detail.Success || detail.InstructorEmail != "ramani@psgtech.ac.in" {
		t.Errorf("unexpected detail: %+v", detail)
	}
}

func TestUpdateStudentMarks(t *testing.T) {
	var received UpdateMarksRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/staff/update-student-marks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(UpdateMarksResponse{Success: true, Message: "marks updated"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.UpdateStudentMarks(context.Background(), &UpdateMarksRequest{
		StudentID:    "22z101",
		CourseID:     "19Z503",
		TeacherEmail: "ramani@psgtech.ac.in",
		Marks:        map[string]float64{"tutorial2": 8},
	})
	if err != nil {
		t.Fatalf("UpdateStudentMarks failed: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success, got %+v", resp)
	}
	if received.Marks["tutorial2"] != 8 {
		t.Errorf("expected tutorial2 mark 8, got %v", received.Marks)
	}
}

func TestUpdateStudentMarksRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(UpdateMarksResponse{
			Success:  false,
			Message:  "student is not enrolled in this course",
			Category: CategoryNotEnrolled,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.UpdateStudentMarks(context.Background(), &UpdateMarksRequest{
		StudentID: "22z999",
		CourseID:  "19Z503",
		Marks:     map[string]float64{"tutorial1": 5},
	})
	if err == nil {
		t.Fatal("expected error for rejected update")
	}
	if resp == nil || resp.Category != CategoryNotEnrolled {
		t.Errorf("expected parsed rejection with category, got %+v", resp)
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatusResponse{Success: true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Success {
		t.Errorf("expected success, got %+v", status)
	}
}

func TestStatusUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("expected error for unavailable analyzer")
	}
}
