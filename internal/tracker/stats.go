package tracker

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/YKarmar/RoleMatch/internal/types"
)

type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

// 投递日志统计
type Stats struct {
	Total        int
	ByStatus     map[types.Status]int
	TopCompanies []CompanyCount
}

// 统计各状态数量和投递最多的公司（前10名）
func ComputeStats(entries []types.LogEntry) Stats {
	st := Stats{
		Total:    len(entries),
		ByStatus: make(map[types.Status]int),
	}

	companyCount := make(map[string]int)
	for _, e := range entries {
		st.ByStatus[types.ParseStatus(string(e.Status))]++
		if e.Company != "" {
			companyCount[e.Company]++
		}
	}

	for company, count := range companyCount {
		st.TopCompanies = append(st.TopCompanies, CompanyCount{company, count})
	}
	sort.Slice(st.TopCompanies, func(i, j int) bool {
		a, b := st.TopCompanies[i], st.TopCompanies[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Company < b.Company
	})

	// 取前10名
	if len(st.TopCompanies) > 10 {
		st.TopCompanies = st.TopCompanies[:10]
	}
	return st
}

// 打印简要统计信息
func PrintStatistics(w io.Writer, entries []types.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "还没有投递记录")
		return
	}

	st := ComputeStats(entries)
	fmt.Fprintf(w, "\n=== 投递统计 ===\n")
	fmt.Fprintf(w, "共 %d 条记录\n\n", st.Total)

	statuses := make([]string, 0, len(st.ByStatus))
	for s := range st.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	fmt.Fprintln(w, "状态分布:")
	for _, s := range statuses {
		name := s
		if s == "" {
			name = "(空)"
		}
		fmt.Fprintf(w, "  %s: %d\n", name, st.ByStatus[types.Status(s)])
	}

	if len(st.TopCompanies) > 0 {
		fmt.Fprintln(w, "\n投递最多的公司:")
		for _, c := range st.TopCompanies {
			fmt.Fprintf(w, "  %s: %d 次\n", c.Company, c.Count)
		}
	}

	// Gmail 每天约100封上限，建议不超过50封
	if sentToday := SentOn(entries, time.Now()); sentToday > 0 {
		fmt.Fprintf(w, "\n今天已发送 %d 封（建议每天不超过 %d 封）\n", sentToday, DailySendAdvice)
	}
}

// 建议的每日发送上限，仅作提示
const DailySendAdvice = 50

// SentOn 统计某一天成功发送的数量
func SentOn(entries []types.LogEntry, day time.Time) int {
	y, m, d := day.Date()
	n := 0
	for _, e := range entries {
		if types.ParseStatus(string(e.Status)) != types.StatusSent || e.DateProcessed.IsZero() {
			continue
		}
		ey, em, ed := e.DateProcessed.In(day.Location()).Date()
		if ey == y && em == m && ed == d {
			n++
		}
	}
	return n
}
