package analyzer_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/YKarmar/RoleMatch/internal/analyzer"
	"github.com/YKarmar/RoleMatch/internal/types"
)

const acmeResponse = `{"jobs":[{"job_title":"Backend Intern","company":"Acme","apply_email":"hr@acme.in","job_type":"Internship","location":"Bengaluru, India","skills":"Python","jd_summary":"Build APIs.","email_subject":"Application for Backend Intern role","email_body_draft":"Dear Hiring Manager,..."}]}`

// ── ParseResponse ──────────────────────────────────────────────────────────

func TestParseResponse_AcmeScenario(t *testing.T) {
	jobs, err := analyzer.ParseResponse(acmeResponse)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	want := []types.JobRecord{{
		JobID:          1,
		JobTitle:       "Backend Intern",
		Company:        "Acme",
		ApplyEmail:     "hr@acme.in",
		JobType:        types.JobTypeInternship,
		Location:       "Bengaluru, India",
		Skills:         "Python",
		JDSummary:      "Build APIs.",
		EmailSubject:   "Application for Backend Intern role",
		EmailBodyDraft: "Dear Hiring Manager,...",
	}}
	if !reflect.DeepEqual(jobs, want) {
		t.Errorf("ParseResponse = %+v, want %+v", jobs, want)
	}
}

func TestParseResponse_FencedEqualsPlain(t *testing.T) {
	plain, err := analyzer.ParseResponse(acmeResponse)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	for _, fenced := range []string{
		"```json\n" + acmeResponse + "\n```",
		"```\n" + acmeResponse + "\n```",
		"  \n```json\n" + acmeResponse + "\n```\n  ",
	} {
		got, err := analyzer.ParseResponse(fenced)
		if err != nil {
			t.Fatalf("fenced %q: %v", fenced, err)
		}
		if !reflect.DeepEqual(got, plain) {
			t.Errorf("fenced parse = %+v, want %+v", got, plain)
		}
	}
}

func TestParseResponse_MissingJobsKeyIsEmpty(t *testing.T) {
	for _, in := range []string{`{}`, `{"result":"none"}`, `{"jobs":null}`, `{"jobs":[]}`} {
		jobs, err := analyzer.ParseResponse(in)
		if err != nil {
			t.Errorf("ParseResponse(%s) error = %v, want nil", in, err)
			continue
		}
		if jobs == nil || len(jobs) != 0 {
			t.Errorf("ParseResponse(%s) = %#v, want empty non-nil slice", in, jobs)
		}
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	cases := []string{
		"",
		"Sure! Here are the jobs:",
		`{"jobs":[`,
		`[1,2,3]`,
		`null`,
		`{"jobs":"none"}`,
		"```json\n{\"jobs\": [}\n```",
	}
	for _, in := range cases {
		jobs, err := analyzer.ParseResponse(in)
		if !errors.Is(err, analyzer.ErrMalformedResponse) {
			t.Errorf("ParseResponse(%q) error = %v, want ErrMalformedResponse", in, err)
		}
		if jobs != nil {
			t.Errorf("ParseResponse(%q) returned a partial list %+v", in, jobs)
		}
	}
}

func TestParseResponse_MissingFieldsBecomeEmpty(t *testing.T) {
	jobs, err := analyzer.ParseResponse(`{"jobs":[{"company":"Acme","skills":null,"job_type":"remote"}]}`)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len = %d, want 1", len(jobs))
	}
	j := jobs[0]
	if j.Company != "Acme" || j.JobTitle != "" || j.ApplyEmail != "" || j.Skills != "" {
		t.Errorf("unexpected record %+v", j)
	}
	if j.JobType != types.JobTypeUnknown {
		t.Errorf("JobType = %q, want Unknown", j.JobType)
	}
}

func TestParseResponse_TolerantFieldTypes(t *testing.T) {
	jobs, err := analyzer.ParseResponse(`{"jobs":[{"job_title":"  Go   Developer ","skills":["Go","SQL"],"apply_email":" jobs@x.in "}]}`)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	j := jobs[0]
	if j.JobTitle != "Go Developer" {
		t.Errorf("JobTitle = %q", j.JobTitle)
	}
	if j.Skills != "Go, SQL" {
		t.Errorf("Skills = %q, want list joined", j.Skills)
	}
	if j.ApplyEmail != "jobs@x.in" {
		t.Errorf("ApplyEmail = %q, want trimmed", j.ApplyEmail)
	}
}

func TestParseResponse_SequentialIDsAndBatchDedup(t *testing.T) {
	in := `{"jobs":[
		{"job_title":"A","apply_email":"a@x.in"},
		"not an object",
		{"job_title":"B","apply_email":""},
		{"job_title":"A again","apply_email":"A@X.in"},
		null,
		{"job_title":"C","apply_email":"c@x.in"},
		{"job_title":"D","apply_email":""}
	]}`
	jobs, err := analyzer.ParseResponse(in)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	var titles []string
	var ids []int
	for _, j := range jobs {
		titles = append(titles, j.JobTitle)
		ids = append(ids, j.JobID)
	}
	if !reflect.DeepEqual(titles, []string{"A", "B", "C", "D"}) {
		t.Errorf("titles = %v", titles)
	}
	if !reflect.DeepEqual(ids, []int{1, 2, 3, 4}) {
		t.Errorf("ids = %v, want 1..4", ids)
	}
}
