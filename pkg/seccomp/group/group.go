// Package group holds the named syscall groups used to keep hand written
// allow lists short, and the transforms between group names and the
// syscalls they stand for.
package group

import "sort"

// groups maps each group name to its syscalls
var groups = map[string][]string{
	// sockets and internet connectivity
	"sockets": {
		"accept4", "bind", "connect", "getpeername", "getsockname", "getsockopt",
		"recvfrom", "recvmmsg", "recvmsg", "sendmmsg", "sendmsg", "sendto",
		"setsockopt", "socket", "listen", "shutdown", "socketpair",
	},

	// read / create / write files
	"files_r": {
		"fcntl", "fstat", "statx", "lseek", "open", "openat", "openat2", "poll",
		"ppoll", "pread64", "close", "close_range", "flock", "futex", "read",
		"access", "faccessat2", "pselect6", "getxattr", "epoll_ctl", "epoll_pwait",
		"epoll_wait", "epoll_create1", "readlinkat", "readlink",
	},
	"files_c": {"newfstatat", "set_robust_list", "dup", "dup2", "dup3", "creat", "linkat"},
	"files_w": {
		"pwrite64", "write", "ftruncate", "fallocate", "renameat", "rename", "unlink",
		"unlinkat", "fadvise64", "fsync", "fdatasync", "umask", "symlink", "chmod", "fchmod",
	},

	// directory get / set
	"dirs_g": {"getdents64", "getcwd"},
	"dirs_s": {"chdir", "mkdir"},

	// memory get / set
	"mem_g": {"madvise", "mincore"},
	"mem_s": {"mprotect", "mmap", "brk", "munmap", "mremap", "msync", "mlock"},

	// filesystem get / set
	"fs_g": {"fstatfs", "fstat", "statfs"},
	"fs_s": {"setfsgid", "setfsuid"},

	"sig": {
		"rt_sigprocmask", "rt_sigreturn", "tgkill", "kill", "rt_sigaction",
		"sigaltstack", "pidfd_send_signal", "restart_syscall",
	},

	// scheduler get / set
	"sched_g": {"sched_yield", "sched_getaffinity", "getpriority", "sched_getparam", "sched_getscheduler"},
	"sched_s": {"sched_setaffinity", "sched_setscheduler", "setpriority"},

	"info": {"uname", "getuid", "geteuid", "getegid", "getpid", "getgid", "getresgid", "getresuid"},

	// process get / set
	"process_g": {
		"exit", "exit_group", "wait4", "waitid", "prctl", "arch_prctl", "pidfd_open",
		"getpgrp", "getppid", "getpgid", "gettid", "kcmp",
	},
	"process_s": {"setpgid", "setsid"},

	// execve cannot be narrowed by argument, bwrap restricts what exists to run
	"spawn": {"clone", "clone3", "set_tid_address", "vfork", "execve", "rseq"},

	"inotify": {"inotify_init", "inotify_init1", "inotify_add_watch", "inotify_rm_watch"},
	"time":    {"nanosleep", "clock_gettime", "clock_nanosleep", "gettimeofday"},
	"timers":  {"timerfd_settime", "timerfd_create"},
	"limits":  {"getrlimit", "setrlimit", "prlimit64"},
	"pkey":    {"pkey_alloc", "pkey_mprotect"},
}

// Names returns the group names, sorted
func Names() []string {
	ret := make([]string, 0, len(groups))
	for n := range groups {
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret
}

// Lookup returns a copy of the syscalls in the named group
func Lookup(name string) ([]string, bool) {
	g, ok := groups[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), g...), true
}

// Expand substitutes every group name in entries by its syscalls. Other
// entries are kept as literals. The result is sorted and deduplicated.
func Expand(entries []string) []string {
	set := make(map[string]struct{})
	for _, e := range entries {
		if e == "" {
			continue
		}
		if g, ok := groups[e]; ok {
			for _, s := range g {
				set[s] = struct{}{}
			}
			continue
		}
		set[e] = struct{}{}
	}
	return sortedKeys(set)
}

// Compress maps a syscall set back to group names plus leftover
// literals. Only groups wholly contained in the set are used, so
// Expand(Compress(s)) equals the deduplicated s. Groups are picked
// greedily by how many uncovered syscalls they cover; a group must cover
// at least two to be worth its name.
func Compress(syscalls []string) []string {
	remaining := make(map[string]struct{}, len(syscalls))
	for _, s := range syscalls {
		if s != "" {
			remaining[s] = struct{}{}
		}
	}
	all := make(map[string]struct{}, len(remaining))
	for s := range remaining {
		all[s] = struct{}{}
	}

	var candidates []string
	for _, n := range Names() {
		if containsAll(all, groups[n]) {
			candidates = append(candidates, n)
		}
	}

	var chosen []string
	for {
		best, bestCover := "", 1
		for _, n := range candidates {
			cover := 0
			for _, s := range groups[n] {
				if _, ok := remaining[s]; ok {
					cover++
				}
			}
			if cover > bestCover {
				best, bestCover = n, cover
			}
		}
		if best == "" {
			break
		}
		chosen = append(chosen, best)
		for _, s := range groups[best] {
			delete(remaining, s)
		}
	}

	sort.Strings(chosen)
	return append(chosen, sortedKeys(remaining)...)
}

func containsAll(set map[string]struct{}, items []string) bool {
	for _, s := range items {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	ret := make([]string, 0, len(set))
	for s := range set {
		ret = append(ret, s)
	}
	sort.Strings(ret)
	return ret
}
