package filter

import "github.com/YKarmar/RoleMatch/internal/types"

// 过滤结果，跳过的职位只计数
type Result struct {
	Eligible       []types.JobRecord
	SkippedInvalid int
	SkippedSent    int
}

// Eligible 返回仍可投递的职位，保持原顺序
func Eligible(jobs []types.JobRecord, sent types.SentSet) []types.JobRecord {
	return Partition(jobs, sent).Eligible
}

// Partition 过滤无效邮箱和已投递地址，不修改输入
func Partition(jobs []types.JobRecord, sent types.SentSet) Result {
	res := Result{Eligible: make([]types.JobRecord, 0, len(jobs))}
	for _, job := range jobs {
		switch {
		case !types.HasContactAddress(job.ApplyEmail):
			res.SkippedInvalid++
		case sent.Contains(job.ApplyEmail):
			res.SkippedSent++
		default:
			res.Eligible = append(res.Eligible, job)
		}
	}
	return res
}
